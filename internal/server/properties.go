package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/proppass/internal/authorization"
	membershipdomain "github.com/smallbiznis/proppass/internal/membership/domain"
	propertydomain "github.com/smallbiznis/proppass/internal/property/domain"
	"github.com/smallbiznis/proppass/pkg/optional"
)

type createPropertyRequest struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

type updatePropertyRequest struct {
	Name         optional.String `json:"name"`
	AddressLine1 optional.String `json:"address_line1"`
	AddressLine2 optional.String `json:"address_line2"`
	City         optional.String `json:"city"`
	State        optional.String `json:"state"`
	Zip          optional.String `json:"zip"`
}

func (s *Server) CreateProperty(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseSnowflakeID(req.AccountID)
	if err != nil {
		AbortWithError(c, propertydomain.ErrInvalidAccount)
		return
	}

	ctx := c.Request.Context()
	if err := s.authzSvc.AuthorizeAccount(ctx, callerID, accountID, authorization.ActionPropertyCreate); err != nil {
		AbortWithError(c, err)
		return
	}

	property, err := s.propertySvc.Create(ctx, propertydomain.CreateRequest{
		AccountID:    accountID,
		CreatedBy:    callerID,
		Name:         req.Name,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		Zip:          req.Zip,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"property": property})
}

func (s *Server) GetProperty(c *gin.Context) {
	propertyID, ok := s.authorizePropertyPath(c, authorization.ActionPropertyView)
	if !ok {
		return
	}

	property, err := s.propertySvc.Get(c.Request.Context(), propertyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"property": property})
}

func (s *Server) UpdateProperty(c *gin.Context) {
	propertyID, ok := s.authorizePropertyPath(c, authorization.ActionPropertyUpdate)
	if !ok {
		return
	}

	var req updatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	property, err := s.propertySvc.Update(c.Request.Context(), propertydomain.UpdateRequest{
		ID:           propertyID,
		Name:         req.Name,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		Zip:          req.Zip,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"property": property})
}

func (s *Server) ListPropertyUsers(c *gin.Context) {
	propertyID, ok := s.authorizePropertyPath(c, authorization.ActionPropertyView)
	if !ok {
		return
	}

	users, err := s.membershipSvc.List(c.Request.Context(), propertyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"property_users": users})
}

func (s *Server) AddPropertyUsers(c *gin.Context) {
	propertyID, ok := s.authorizePropertyPath(c, authorization.ActionTeamManage)
	if !ok {
		return
	}

	members, err := bindMembers(c, "users")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.membershipSvc.AddUsers(c.Request.Context(), propertyID, members)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"property": result})
}

func (s *Server) SyncPropertyTeam(c *gin.Context) {
	propertyID, ok := s.authorizePropertyPath(c, authorization.ActionTeamManage)
	if !ok {
		return
	}

	members, err := bindMembers(c, "team", "users")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	users, err := s.membershipSvc.SyncTeam(c.Request.Context(), propertyID, members)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"property_users": users})
}

func (s *Server) authorizePropertyPath(c *gin.Context, action string) (snowflake.ID, bool) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return 0, false
	}
	propertyID, ok := pathID(c, "propertyId")
	if !ok {
		return 0, false
	}
	if err := s.authzSvc.AuthorizeProperty(c.Request.Context(), callerID, propertyID, action); err != nil {
		AbortWithError(c, err)
		return 0, false
	}
	return propertyID, true
}

// bindMembers accepts a bare JSON array or an object holding the array under
// one of keys.
func bindMembers(c *gin.Context, keys ...string) ([]membershipdomain.Member, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, invalidRequestError()
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, invalidRequestError()
	}

	if body[0] == '[' {
		var members []membershipdomain.Member
		if err := json.Unmarshal(body, &members); err != nil {
			return nil, invalidRequestError()
		}
		return members, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil || wrapped == nil {
		return nil, invalidRequestError()
	}
	for _, key := range keys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		// A null list would read as an empty team and wipe every member.
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, newValidationError(key, "invalid_"+key, key+" must be an array")
		}
		var members []membershipdomain.Member
		if err := json.Unmarshal(raw, &members); err != nil {
			return nil, newValidationError(key, "invalid_"+key, key+" must be an array")
		}
		return members, nil
	}
	return nil, newValidationError(keys[0], "required", keys[0]+" is required")
}

func isPropertyValidationError(err error) bool {
	return errorIsAny(err,
		propertydomain.ErrInvalidAccount,
		propertydomain.ErrInvalidCreator,
		propertydomain.ErrInvalidID,
	)
}

func isMembershipValidationError(err error) bool {
	return errorIsAny(err,
		membershipdomain.ErrInvalidProperty,
		membershipdomain.ErrInvalidUser,
		membershipdomain.ErrEmptyMembers,
	)
}

func isPropertyNotFoundError(err error) bool {
	return errors.Is(err, propertydomain.ErrNotFound) ||
		errors.Is(err, membershipdomain.ErrPropertyNotFound)
}
