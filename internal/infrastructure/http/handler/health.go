package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func HealthHandler(startTime time.Time, service, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:  "healthy",
			Service: service,
			Version: version,
			Uptime:  time.Since(startTime).Truncate(time.Second).String(),
		})
	}
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ReadyCheck reports whether a backing resource can serve traffic.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func ReadyHandler(checks ...ReadyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := ReadyResponse{Status: "ready"}
		status := http.StatusOK
		for _, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check.Check(ctx); err != nil {
				resp.Checks[check.Name] = err.Error()
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
		c.JSON(status, resp)
	}
}
