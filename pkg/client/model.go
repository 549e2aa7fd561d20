package client

import (
	"errors"
	"fmt"
)

var ErrInstanceNotFound = errors.New("instance not found")

type RegisterRequest struct {
	ServiceName string            `json:"service_name"`
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	Scheme      string            `json:"scheme,omitempty"`
	HealthURL   string            `json:"health_url,omitempty"`
	Version     string            `json:"version,omitempty"`
	Weight      int               `json:"weight,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type RegisterResponse struct {
	InstanceID        string `json:"instance_id"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
	HeartbeatURL      string `json:"heartbeat_url"`
}

// StatusError is an unexpected reply from the registry. 4xx replies are
// not retried: sending the same request again cannot fix them.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
