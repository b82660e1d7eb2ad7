package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const headerActorID = "X-Actor-ID"

// APIKeyRequired checks the bearer token against the configured bcrypt hash.
// With no hash configured every request passes.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.apiKeyHash) == 0 {
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(parts[1])); err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// actorID returns the X-Actor-ID header, nil when absent.
func actorID(c *gin.Context) *string {
	value := strings.TrimSpace(c.GetHeader(headerActorID))
	if value == "" {
		return nil
	}
	return &value
}
