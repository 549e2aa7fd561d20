package application

import (
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
)

// Heartbeat refreshes an instance and brings it back to healthy if the
// cleanup loop had marked it otherwise.
func (r *Registry) Heartbeat(instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, exists := r.instances[instanceID]
	if !exists {
		return domain.ErrInstanceNotFound
	}

	instance.LastHeartbeat = time.Now()
	instance.Status = domain.StatusHealthy
	return nil
}
