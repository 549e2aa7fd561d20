package application

import (
	"log/slog"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/google/uuid"
)

func (r *Registry) Register(req *domain.RegisterRequest) (*domain.RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	instanceID := uuid.New().String()
	now := time.Now()

	instance := &domain.ServiceInstance{
		ID:            instanceID,
		ServiceName:   req.ServiceName,
		Host:          req.Host,
		Port:          req.Port,
		Scheme:        req.Scheme,
		HealthURL:     req.HealthURL,
		Version:       req.Version,
		Status:        domain.StatusHealthy,
		Weight:        req.Weight,
		Metadata:      req.Metadata,
		RegisteredAt:  now,
		LastHeartbeat: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A restarted replica re-registers under a new id; drop the old entry
	// for the same address so it is not resolved twice.
	for _, id := range r.services[req.ServiceName] {
		if old := r.instances[id]; old != nil && old.Address() == instance.Address() {
			slog.Info("replacing instance registered at same address",
				"service", req.ServiceName,
				"old_instance_id", id,
				"instance_id", instanceID,
				"address", old.Address(),
			)
			r.removeInstanceLocked(id)
			break
		}
	}

	r.instances[instanceID] = instance
	r.services[req.ServiceName] = append(r.services[req.ServiceName], instanceID)

	return &domain.RegisterResponse{
		InstanceID:        instanceID,
		HeartbeatInterval: int(r.config.HeartbeatTTL.Seconds()),
		HeartbeatURL:      "/internal/registry/heartbeat",
	}, nil
}

func (r *Registry) Deregister(instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instanceID]; !exists {
		return domain.ErrInstanceNotFound
	}

	r.removeInstanceLocked(instanceID)
	return nil
}

func (r *Registry) removeInstanceLocked(instanceID string) {
	instance, exists := r.instances[instanceID]
	if !exists {
		return
	}

	s := instance.ServiceName

	instanceIDs := r.services[s]
	for i, id := range instanceIDs {
		if id == instanceID {
			r.services[s] = append(instanceIDs[:i], instanceIDs[i+1:]...)
			break
		}
	}

	if len(r.services[s]) == 0 {
		delete(r.services, s)
	}

	delete(r.instances, instanceID)
}
