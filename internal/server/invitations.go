package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/proppass/internal/authorization"
	invitationdomain "github.com/smallbiznis/proppass/internal/invitation/domain"
)

type createInvitationRequest struct {
	Email      string `json:"email"`
	Scope      string `json:"scope"`
	Role       string `json:"role"`
	AccountID  string `json:"account_id"`
	PropertyID string `json:"property_id"`
}

type acceptInvitationRequest struct {
	Token    string  `json:"token"`
	Password *string `json:"password"`
	Name     string  `json:"name"`
}

type declineInvitationRequest struct {
	Token string `json:"token"`
}

func (s *Server) CreateInvitation(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	accountID, err := parseOptionalSnowflakeID(req.AccountID)
	if err != nil {
		AbortWithError(c, invitationdomain.ErrInvalidAccount)
		return
	}
	propertyID, err := parseOptionalSnowflakeID(req.PropertyID)
	if err != nil {
		AbortWithError(c, invitationdomain.ErrInvalidProperty)
		return
	}

	ctx := c.Request.Context()
	switch invitationdomain.Scope(strings.ToLower(strings.TrimSpace(req.Scope))) {
	case invitationdomain.ScopeProperty:
		if propertyID == nil {
			AbortWithError(c, invitationdomain.ErrInvalidProperty)
			return
		}
		if err := s.authzSvc.AuthorizeProperty(ctx, callerID, *propertyID, authorization.ActionInvitationCreate); err != nil {
			AbortWithError(c, err)
			return
		}
		if accountID == nil {
			property, err := s.propertySvc.Get(ctx, *propertyID)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			accountID = &property.AccountID
		}
	case invitationdomain.ScopeAccount:
		if accountID == nil {
			AbortWithError(c, invitationdomain.ErrInvalidAccount)
			return
		}
		if err := s.authzSvc.AuthorizeAccount(ctx, callerID, *accountID, authorization.ActionInvitationCreate); err != nil {
			AbortWithError(c, err)
			return
		}
	default:
		AbortWithError(c, invitationdomain.ErrInvalidScope)
		return
	}

	resp, err := s.invitationSvc.Create(ctx, invitationdomain.CreateRequest{
		Scope:      req.Scope,
		InvitedBy:  callerID,
		Email:      req.Email,
		AccountID:  *accountID,
		PropertyID: propertyID,
		Role:       req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"invitation": resp.Invitation,
		"token":      resp.Token,
	})
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invitationdomain.ErrAcceptInvalid)
		return
	}

	var req acceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}

	resp, err := s.invitationSvc.Accept(c.Request.Context(), invitationdomain.AcceptRequest{
		InvitationID: id,
		Token:        req.Token,
		Password:     req.Password,
		Name:         req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeclineInvitation accepts either the raw token or an authenticated caller
// whose email matches the invitation.
func (s *Server) DeclineInvitation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req declineInvitationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	ctx := c.Request.Context()
	var email string
	if callerID, ok := userIDFromContext(c); ok {
		user, err := s.userRepo.FindByID(ctx, s.db, callerID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if user != nil {
			email = user.Email
		}
	}
	if strings.TrimSpace(req.Token) == "" && email == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	state, err := s.invitationSvc.Decline(ctx, invitationdomain.DeclineRequest{
		ID:    id,
		Token: req.Token,
		Email: email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}

// RevokeInvitation is allowed for the inviter and for callers holding
// invitation.revoke on the invitation's property or account.
func (s *Server) RevokeInvitation(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	inv, err := s.invitationSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if inv.InvitedBy != callerID {
		if err := s.authorizeInvitation(c, callerID, inv, authorization.ActionInvitationRevoke); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	state, err := s.invitationSvc.Revoke(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) ListSentInvitations(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	invitations, err := s.invitationSvc.ListSent(c.Request.Context(), callerID, stateQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) ListAccountInvitations(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := s.authzSvc.AuthorizeAccount(ctx, callerID, accountID, authorization.ActionInvitationView); err != nil {
		AbortWithError(c, err)
		return
	}

	invitations, err := s.invitationSvc.ListByAccount(ctx, accountID, stateQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) ListPropertyInvitations(c *gin.Context) {
	callerID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	propertyID, ok := pathID(c, "propertyId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := s.authzSvc.AuthorizeProperty(ctx, callerID, propertyID, authorization.ActionInvitationView); err != nil {
		AbortWithError(c, err)
		return
	}

	invitations, err := s.invitationSvc.ListByProperty(ctx, propertyID, stateQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) authorizeInvitation(c *gin.Context, callerID snowflake.ID, inv invitationdomain.Invitation, action string) error {
	ctx := c.Request.Context()
	if inv.Scope == invitationdomain.ScopeProperty && inv.PropertyID != nil {
		return s.authzSvc.AuthorizeProperty(ctx, callerID, *inv.PropertyID, action)
	}
	return s.authzSvc.AuthorizeAccount(ctx, callerID, inv.AccountID, action)
}

func isInvitationValidationError(err error) bool {
	return errorIsAny(err,
		invitationdomain.ErrInvalidScope,
		invitationdomain.ErrInvalidEmail,
		invitationdomain.ErrInvalidRole,
		invitationdomain.ErrInvalidAccount,
		invitationdomain.ErrInvalidProperty,
		invitationdomain.ErrInvalidInviter,
		invitationdomain.ErrInvalidState,
		invitationdomain.ErrInvalidID,
	)
}

func isInvitationNotFoundError(err error) bool {
	return errors.Is(err, invitationdomain.ErrNotFound) ||
		errors.Is(err, invitationdomain.ErrAccountNotFound) ||
		errors.Is(err, invitationdomain.ErrPropertyMissing)
}
