package application

import (
	"log/slog"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/observability"
)

func (r *Registry) Start() {
	go r.cleanupLoop()
}

func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Registry) cleanupLoop() {
	interval := r.config.HeartbeatTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup marks instances unhealthy after one missed TTL and drops them
// after two.
func (r *Registry) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var toRemove []string
	touched := make(map[string]struct{})

	for id, instance := range r.instances {
		elapsed := now.Sub(instance.LastHeartbeat)

		if elapsed > r.config.HeartbeatTTL*2 {
			toRemove = append(toRemove, id)
			slog.Info("removing expired instance",
				"instance_id", id,
				"service", instance.ServiceName,
				"last_heartbeat", instance.LastHeartbeat,
			)
		} else if elapsed > r.config.HeartbeatTTL && instance.Status == domain.StatusHealthy {
			instance.Status = domain.StatusUnhealthy
			slog.Warn("marking instance unhealthy",
				"instance_id", id,
				"service", instance.ServiceName,
				"elapsed", elapsed,
			)
		}
	}

	for _, id := range toRemove {
		touched[r.instances[id].ServiceName] = struct{}{}
		r.removeInstanceLocked(id)
	}

	r.reportLocked(touched)
}

// reportLocked publishes the healthy instance count per service, including
// zero for services whose last instance was just removed.
func (r *Registry) reportLocked(touched map[string]struct{}) {
	for name := range r.services {
		touched[name] = struct{}{}
	}
	for name := range touched {
		healthy := 0
		for _, id := range r.services[name] {
			if instance := r.instances[id]; instance != nil && instance.IsHealthy() {
				healthy++
			}
		}
		r.config.Metrics.Set(observability.RegistryInstances, float64(healthy), map[string]string{"service": name})
	}
}
