package domain

import (
	"fmt"
	"strings"
)

var (
	ErrServiceNotFound  = fmt.Errorf("service not found")
	ErrInstanceNotFound = fmt.Errorf("instance not found")
	ErrInvalidRequest   = fmt.Errorf("invalid request")
	ErrUnknownSchema    = fmt.Errorf("unknown contract schema")

	ErrSessionNotFound       = fmt.Errorf("session not found")
	ErrSessionUnavailable    = fmt.Errorf("session not available for booking")
	ErrBookingNotFound       = fmt.Errorf("booking not found")
	ErrPaymentNotFound       = fmt.Errorf("payment not found")
	ErrPaymentExists         = fmt.Errorf("payment already pending or completed for booking")
	ErrDuplicateID           = fmt.Errorf("id already in use")
	ErrSeatTaken             = fmt.Errorf("seat already booked")
	ErrInvalidTransition     = fmt.Errorf("invalid status transition")
	ErrDependencyUnavailable = fmt.Errorf("dependency unavailable")
)

// ContractViolationError lists why a payload failed its contract.
type ContractViolationError struct {
	Schema     string   `json:"schema"`
	Violations []string `json:"violations"`
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("contract %s violated: %s", e.Schema, strings.Join(e.Violations, "; "))
}

// ValidationError reports a rejected client request. It matches ErrInvalidRequest.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
