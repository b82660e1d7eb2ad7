package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/acquiring/internal/observability/context"
	obslogger "github.com/smallbiznis/acquiring/internal/observability/logger"
	"go.uber.org/zap"
)

// PaymentScope copies the :id path parameter into the request context so
// service logs carry the payment id.
func PaymentScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			c.Request = c.Request.WithContext(obscontext.WithPaymentID(c.Request.Context(), id))
		}
		c.Next()
	}
}

// RateLimit applies the per-client API limit. A Redis failure lets the
// request through.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			obslogger.WithContext(ctx, s.log).Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
