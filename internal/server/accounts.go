package server

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/proppass/internal/account/domain"
	"github.com/smallbiznis/proppass/internal/authorization"
	tierdomain "github.com/smallbiznis/proppass/internal/tier/domain"
)

type createAccountRequest struct {
	Name string `json:"name"`
}

type addContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type accountUsageCounts struct {
	Properties int64 `json:"properties"`
	Contacts   int64 `json:"contacts"`
}

// CreateAccount opens an account with the caller as owner.
func (s *Server) CreateAccount(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Create(c.Request.Context(), accountdomain.CreateAccountRequest{
		Name:    req.Name,
		OwnerID: callerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

func (s *Server) GetAccount(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionAccountView)
	if !ok {
		return
	}

	account, err := s.accountSvc.Get(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (s *Server) GetAccountLimits(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionAccountView)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	limits, err := s.tierSvc.GetAccountLimits(ctx, accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	properties, err := s.tierSvc.CanCreateProperty(ctx, accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	contacts, err := s.tierSvc.CanAddContact(ctx, accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limits": limits,
		"usage": accountUsageCounts{
			Properties: properties.Current,
			Contacts:   contacts.Current,
		},
	})
}

func (s *Server) ListAccountProperties(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionPropertyView)
	if !ok {
		return
	}

	properties, err := s.propertySvc.ListByAccount(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"properties": properties})
}

func (s *Server) AddContact(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionContactCreate)
	if !ok {
		return
	}

	var req addContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contact, err := s.accountSvc.AddContact(c.Request.Context(), accountdomain.AddContactRequest{
		AccountID: accountID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"contact": contact})
}

func (s *Server) ListContacts(c *gin.Context) {
	accountID, ok := s.authorizeAccountPath(c, authorization.ActionContactView)
	if !ok {
		return
	}

	contacts, err := s.accountSvc.ListContacts(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (s *Server) authorizeAccountPath(c *gin.Context, action string) (snowflake.ID, bool) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return 0, false
	}
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return 0, false
	}
	if err := s.authzSvc.AuthorizeAccount(c.Request.Context(), callerID, accountID, action); err != nil {
		AbortWithError(c, err)
		return 0, false
	}
	return accountID, true
}

func isAccountValidationError(err error) bool {
	return errorIsAny(err,
		accountdomain.ErrInvalidAccount,
		accountdomain.ErrInvalidName,
		accountdomain.ErrInvalidEmail,
		accountdomain.ErrInvalidOwner,
		tierdomain.ErrInvalidAccount,
		tierdomain.ErrInvalidProperty,
	)
}

func isAccountNotFoundError(err error) bool {
	return errors.Is(err, accountdomain.ErrNotFound)
}
