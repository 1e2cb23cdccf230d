package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/proppass/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderUserID     = "X-User-ID"
	contextUserIDKey = "user_id"
)

// UserAuth trusts the gateway-provided X-User-ID header. A missing or
// malformed id is rejected with 401.
func (s *Server) UserAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseUserHeader(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		bindUser(c, userID)
		c.Next()
	}
}

// OptionalUserAuth binds the caller when the header is present and valid.
func (s *Server) OptionalUserAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := parseUserHeader(c); ok {
			bindUser(c, userID)
		}
		c.Next()
	}
}

func parseUserHeader(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if raw == "" {
		return 0, false
	}
	userID, err := snowflake.ParseString(raw)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func bindUser(c *gin.Context, userID snowflake.ID) {
	c.Set(contextUserIDKey, userID)
	c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), userID.String()))
}

func userIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	v, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := v.(snowflake.ID)
	return userID, ok && userID != 0
}

// AcceptRateLimit throttles invitation accepts per client IP when a limiter
// is configured.
func (s *Server) AcceptRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.acceptLimiter == nil || !s.acceptLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.acceptLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("invitation accept rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			logger.FromContext(ctx).Warn("invitation accept rate limit exceeded", zap.String("client_ip", c.ClientIP()))
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
