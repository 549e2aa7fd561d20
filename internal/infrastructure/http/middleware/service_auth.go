package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyServiceName = "service_name"
	HeaderServiceToken    = "X-Service-Token"
)

// TokenValidator resolves a service token to the calling service name.
type TokenValidator interface {
	ValidateServiceToken(token string) (string, error)
}

type ServiceAuthMiddleware struct {
	validator TokenValidator
}

func NewServiceAuthMiddleware(validator TokenValidator) *ServiceAuthMiddleware {
	return &ServiceAuthMiddleware{validator: validator}
}

func (m *ServiceAuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderServiceToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing_token",
			})
			return
		}

		serviceName, err := m.validator.ValidateServiceToken(token)
		if err != nil {
			slog.Warn("service token rejected",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"error", err,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid_token",
			})
			return
		}

		c.Set(ContextKeyServiceName, serviceName)
		c.Next()
	}
}
