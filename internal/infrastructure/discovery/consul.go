package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/hashicorp/consul/api"
)

// ConsulLookup resolves instances that pass all of their Consul health checks.
type ConsulLookup struct {
	client *api.Client
	logger *slog.Logger
}

func NewConsulLookup(addr string, logger *slog.Logger) (*ConsulLookup, error) {
	apiCfg := api.DefaultConfig()
	if addr != "" {
		apiCfg.Address = addr
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &ConsulLookup{client: client, logger: logger}, nil
}

var _ domain.Lookup = (*ConsulLookup)(nil)

func (c *ConsulLookup) Resolve(ctx context.Context, serviceName string) []*domain.ServiceInstance {
	opts := (&api.QueryOptions{}).WithContext(ctx)
	entries, _, err := c.client.Health().Service(serviceName, "", true, opts)
	if err != nil {
		c.logger.Warn("consul lookup failed", "service", serviceName, "error", err)
		return nil
	}

	now := time.Now()
	instances := make([]*domain.ServiceInstance, 0, len(entries))
	for _, e := range entries {
		if e.Service == nil {
			continue
		}
		instances = append(instances, serviceEntryToInstance(e, now))
	}
	return instances
}

func serviceEntryToInstance(e *api.ServiceEntry, now time.Time) *domain.ServiceInstance {
	host := e.Service.Address
	if host == "" && e.Node != nil {
		host = e.Node.Address
	}

	weight := 1
	if w, err := strconv.Atoi(e.Service.Meta["weight"]); err == nil && w > 0 {
		weight = w
	}

	return &domain.ServiceInstance{
		ID:            e.Service.ID,
		ServiceName:   e.Service.Service,
		Host:          host,
		Port:          e.Service.Port,
		Scheme:        e.Service.Meta["scheme"],
		HealthURL:     "/health",
		Version:       e.Service.Meta["version"],
		Status:        domain.StatusHealthy,
		Weight:        weight,
		Metadata:      e.Service.Meta,
		LastHeartbeat: now,
	}
}
