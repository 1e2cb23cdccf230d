package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/proppass/internal/authorization"
	usagedomain "github.com/smallbiznis/proppass/internal/usage/domain"
	"github.com/smallbiznis/proppass/pkg/db/pagination"
)

type logUsageRequest struct {
	Category string         `json:"category"`
	Resource string         `json:"resource"`
	Quantity float64        `json:"quantity"`
	Unit     string         `json:"unit"`
	UnitCost float64        `json:"unit_cost"`
	Metadata map[string]any `json:"metadata"`

	Model            string `json:"model"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	Bytes            int64  `json:"bytes"`
}

// metered reports whether the request describes raw consumption to be
// priced from the rate table rather than an explicit cost.
func (r logUsageRequest) metered() bool {
	if r.Unit != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.Category)) {
	case usagedomain.CategoryAITokens:
		return r.Model != "" || r.PromptTokens > 0 || r.CompletionTokens > 0
	case usagedomain.CategoryStorage:
		return r.Bytes > 0
	case usagedomain.CategoryEmail:
		return true
	default:
		return false
	}
}

func (s *Server) LogUsage(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionUsageLog)
	if !ok {
		return
	}
	callerID, _ := userIDFromContext(c)

	var req logUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	var (
		event usagedomain.Event
		err   error
	)
	if req.metered() {
		event, err = s.usageSvc.Meter(ctx, usagedomain.MeterRequest{
			AccountID:        accountID,
			UserID:           &callerID,
			Category:         req.Category,
			Resource:         req.Resource,
			Model:            req.Model,
			PromptTokens:     req.PromptTokens,
			CompletionTokens: req.CompletionTokens,
			Bytes:            req.Bytes,
			Metadata:         req.Metadata,
		})
	} else {
		event, err = s.usageSvc.Log(ctx, usagedomain.LogRequest{
			AccountID: accountID,
			UserID:    &callerID,
			Category:  req.Category,
			Resource:  req.Resource,
			Quantity:  req.Quantity,
			Unit:      req.Unit,
			UnitCost:  req.UnitCost,
			Metadata:  req.Metadata,
		})
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (s *Server) GetMonthlySpend(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionUsageView)
	if !ok {
		return
	}

	spend, err := s.usageSvc.GetMonthlySpend(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"spend": spend})
}

func (s *Server) GetMonthlySpendByCategory(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionUsageView)
	if !ok {
		return
	}

	categories, err := s.usageSvc.GetMonthlySpendByCategory(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (s *Server) CheckBudget(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionUsageView)
	if !ok {
		return
	}

	limit, err := parseOptionalFloat(c.Query("cap"))
	if err != nil || limit == nil {
		AbortWithError(c, usagedomain.ErrInvalidCap)
		return
	}

	budget, err := s.usageSvc.CheckBudget(c.Request.Context(), accountID, c.Query("category"), *limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

func (s *Server) GetUsageHistory(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionUsageView)
	if !ok {
		return
	}

	var query struct {
		pagination.Page
		Category string `form:"category"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.usageSvc.GetHistory(c.Request.Context(), usagedomain.HistoryRequest{
		AccountID: accountID,
		Category:  query.Category,
		Page:      query.Page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func isUsageValidationError(err error) bool {
	return errorIsAny(err,
		usagedomain.ErrInvalidAccount,
		usagedomain.ErrInvalidCategory,
		usagedomain.ErrInvalidQuantity,
		usagedomain.ErrInvalidUnit,
		usagedomain.ErrInvalidUnitCost,
		usagedomain.ErrInvalidCap,
		usagedomain.ErrInvalidModel,
	)
}
