package application

import (
	"testing"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
)

func TestHeartbeat_Success(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})

	resp, _ := registry.Register(movieRegistration(8081))

	oldHeartbeat := registry.instances[resp.InstanceID].LastHeartbeat
	time.Sleep(10 * time.Millisecond)

	err := registry.Heartbeat(resp.InstanceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newHeartbeat := registry.instances[resp.InstanceID].LastHeartbeat
	if !newHeartbeat.After(oldHeartbeat) {
		t.Error("LastHeartbeat was not updated")
	}
}

func TestHeartbeat_RestoresHealthy(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})

	resp, _ := registry.Register(movieRegistration(8081))
	registry.instances[resp.InstanceID].Status = domain.StatusUnhealthy

	if err := registry.Heartbeat(resp.InstanceID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if registry.instances[resp.InstanceID].Status != domain.StatusHealthy {
		t.Error("heartbeat should mark the instance healthy again")
	}
}

func TestHeartbeat_NotFound(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})

	err := registry.Heartbeat("non-existent-id")
	if err != domain.ErrInstanceNotFound {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}
}
