package application

import (
	"sync"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/observability"
)

type RegistryConfig struct {
	HeartbeatTTL time.Duration
	Metrics      observability.Gauge
}

// Registry is the in-process service registry. It backs the registry
// service and doubles as a domain.Lookup for processes that embed it.
type Registry struct {
	config    RegistryConfig
	mu        sync.RWMutex
	instances map[string]*domain.ServiceInstance
	services  map[string][]string
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.HeartbeatTTL <= 0 {
		cfg.HeartbeatTTL = 30 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.Noop{}
	}
	return &Registry{
		config:    cfg,
		instances: make(map[string]*domain.ServiceInstance),
		services:  make(map[string][]string),
		stopCh:    make(chan struct{}),
	}
}

var _ domain.Lookup = (*Registry)(nil)
