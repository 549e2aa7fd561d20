package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
)

// StaticLookup serves a fixed instance list, for local runs and tests.
type StaticLookup struct {
	instances map[string][]*domain.ServiceInstance
}

func NewStaticLookup(instances ...*domain.ServiceInstance) *StaticLookup {
	s := &StaticLookup{instances: make(map[string][]*domain.ServiceInstance)}
	for _, instance := range instances {
		s.instances[instance.ServiceName] = append(s.instances[instance.ServiceName], instance)
	}
	return s
}

// ParseStatic reads "movie-service=host:port,host:port;booking-service=host:port".
func ParseStatic(raw string) (*StaticLookup, error) {
	var all []*domain.ServiceInstance
	now := time.Now()

	for _, group := range strings.Split(raw, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		name, addrs, ok := strings.Cut(group, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("static instances: expected name=host:port, got %q", group)
		}

		for i, addr := range strings.Split(addrs, ",") {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			host, portStr, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("static instances: %s: %w", name, err)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil || port <= 0 || port > 65535 {
				return nil, fmt.Errorf("static instances: %s: invalid port %q", name, portStr)
			}
			all = append(all, &domain.ServiceInstance{
				ID:            fmt.Sprintf("%s-%d", name, i+1),
				ServiceName:   name,
				Host:          host,
				Port:          port,
				HealthURL:     "/health",
				Status:        domain.StatusHealthy,
				Weight:        1,
				RegisteredAt:  now,
				LastHeartbeat: now,
			})
		}
	}
	return NewStaticLookup(all...), nil
}

var _ domain.Lookup = (*StaticLookup)(nil)

func (s *StaticLookup) Resolve(_ context.Context, serviceName string) []*domain.ServiceInstance {
	src := s.instances[serviceName]
	if len(src) == 0 {
		return nil
	}
	out := make([]*domain.ServiceInstance, len(src))
	for i, instance := range src {
		out[i] = instance.Clone()
	}
	return out
}
