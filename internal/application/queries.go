package application

import (
	"context"

	"github.com/apascualco/cinemesh/internal/domain"
)

func (r *Registry) GetInstance(instanceID string) *domain.ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if instance := r.instances[instanceID]; instance != nil {
		return instance.Clone()
	}
	return nil
}

func (r *Registry) GetInstances(serviceName string) []*domain.ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instanceIDs := r.services[serviceName]
	if len(instanceIDs) == 0 {
		return nil
	}

	instances := make([]*domain.ServiceInstance, 0, len(instanceIDs))
	for _, id := range instanceIDs {
		if instance := r.instances[id]; instance != nil {
			instances = append(instances, instance.Clone())
		}
	}
	return instances
}

func (r *Registry) GetHealthyInstances(serviceName string) []*domain.ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instanceIDs := r.services[serviceName]
	if len(instanceIDs) == 0 {
		return nil
	}

	var healthy []*domain.ServiceInstance
	for _, id := range instanceIDs {
		if instance := r.instances[id]; instance != nil && instance.IsHealthy() {
			healthy = append(healthy, instance.Clone())
		}
	}
	return healthy
}

// Resolve implements domain.Lookup. Callers get copies, so the snapshot
// stays stable while the registry keeps changing underneath.
func (r *Registry) Resolve(_ context.Context, serviceName string) []*domain.ServiceInstance {
	return r.GetHealthyInstances(serviceName)
}

func (r *Registry) GetAllServices() map[string][]*domain.ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string][]*domain.ServiceInstance)
	for serviceName, instanceIDs := range r.services {
		instances := make([]*domain.ServiceInstance, 0, len(instanceIDs))
		for _, id := range instanceIDs {
			if instance := r.instances[id]; instance != nil {
				instances = append(instances, instance.Clone())
			}
		}
		if len(instances) > 0 {
			result[serviceName] = instances
		}
	}
	return result
}
