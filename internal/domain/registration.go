package domain

import "errors"

type RegisterRequest struct {
	ServiceName string            `json:"service_name" binding:"required"`
	Host        string            `json:"host" binding:"required"`
	Port        int               `json:"port" binding:"required"`
	Scheme      string            `json:"scheme"`
	HealthURL   string            `json:"health_url"`
	Version     string            `json:"version"`
	Weight      int               `json:"weight"`
	Metadata    map[string]string `json:"metadata"`
}

func (r *RegisterRequest) Validate() error {
	if r.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if r.Host == "" {
		return errors.New("host is required")
	}
	if r.Port <= 0 || r.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if r.Scheme != "" && r.Scheme != "http" && r.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if r.HealthURL == "" {
		r.HealthURL = "/health"
	}
	if r.Weight <= 0 {
		r.Weight = 1
	}
	return nil
}

type RegisterResponse struct {
	InstanceID        string `json:"instance_id"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
	HeartbeatURL      string `json:"heartbeat_url"`
}

type HeartbeatRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

type HeartbeatResponse struct {
	Status string `json:"status"`
}

type DeregisterRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}
