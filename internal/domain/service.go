package domain

import (
	"fmt"
	"time"
)

type ServiceStatus string

const (
	StatusHealthy   ServiceStatus = "healthy"
	StatusUnhealthy ServiceStatus = "unhealthy"
	StatusUnknown   ServiceStatus = "unknown"
)

// ServiceInstance is one addressable replica of a logical service. Instances
// are snapshots: the replica behind one may be gone by the time it is called.
type ServiceInstance struct {
	ID            string            `json:"id"`
	ServiceName   string            `json:"service_name"`
	Host          string            `json:"host"`
	Port          int               `json:"port"`
	Scheme        string            `json:"scheme,omitempty"`
	HealthURL     string            `json:"health_url"`
	Version       string            `json:"version"`
	Status        ServiceStatus     `json:"status"`
	Weight        int               `json:"weight"`
	Metadata      map[string]string `json:"metadata"`
	RegisteredAt  time.Time         `json:"registered_at"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
}

func (i *ServiceInstance) Address() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// BaseURL is the scheme and address requests to this instance are built on.
func (i *ServiceInstance) BaseURL() string {
	scheme := i.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, i.Address())
}

func (i *ServiceInstance) IsHealthy() bool {
	return i.Status == StatusHealthy
}

// Clone returns a copy that shares nothing mutable with the receiver.
func (i *ServiceInstance) Clone() *ServiceInstance {
	c := *i
	if i.Metadata != nil {
		c.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
