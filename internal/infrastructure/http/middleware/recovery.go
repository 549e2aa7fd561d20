package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/apascualco/cinemesh/internal/infrastructure/observability"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func Recovery(counter observability.Counter) gin.HandlerFunc {
	if counter == nil {
		counter = observability.Noop{}
	}
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"request_id", c.GetString(ContextKeyRequestID),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"stack", string(debug.Stack()),
				)
				counter.Incr(observability.HTTPPanics, map[string]string{"route": routeOf(c)})
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "internal_error",
					Message: "Internal Server Error",
				})
			}
		}()
		c.Next()
	}
}
