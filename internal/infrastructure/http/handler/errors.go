package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}

// respondError maps application errors onto status codes. Order matters:
// a create that fails because its referenced entity is missing wraps both
// ErrInvalidRequest and a not-found error and must answer 400.
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"),
			"error", err,
		)
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "dependency_unavailable"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrSessionUnavailable):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrPaymentExists):
		return http.StatusConflict, "payment_exists"
	case errors.Is(err, domain.ErrSeatTaken):
		return http.StatusConflict, "seat_taken"
	case errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrServiceNotFound),
		errors.Is(err, domain.ErrUnknownSchema):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
