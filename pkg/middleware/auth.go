package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrUnauthorized the bearer token is missing or does not match.
var ErrUnauthorized = errors.New("unauthorized")

// BearerAuth checks "Authorization: Bearer <token>". An empty token disables
// the check.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			logger.Warn("Webhook authorization failed",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path))
			response.AbortWithStatusJSON(c, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
