package http

import (
	"context"
	"log/slog"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/handler"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/middleware"
)

func NewRegistryServer(cfg *config.Config) (*Server, *application.Registry, error) {
	s := newServer(cfg)

	slog.Debug("new application registry", slog.Duration("heartbeat_ttl", cfg.HeartbeatTTL))
	registry := application.NewRegistry(application.RegistryConfig{
		HeartbeatTTL: cfg.HeartbeatTTL,
		Metrics:      s.metrics,
	})

	jwtService, err := newJWTService(cfg)
	if err != nil {
		return nil, nil, err
	}

	registryHandler := handler.NewRegistryHandler(registry)
	internal := s.router.Group("/internal/registry")
	if jwtService.CanVerify() {
		internal.Use(middleware.NewServiceAuthMiddleware(jwtService).Authenticate())
		slog.Info("service authentication enabled", "audience", cfg.JWTAudience)
	} else {
		slog.Warn("JWT keys not configured, registry endpoints are unauthenticated")
	}
	{
		internal.POST("/register", registryHandler.Register)
		internal.POST("/heartbeat", registryHandler.Heartbeat)
		internal.POST("/deregister", registryHandler.Deregister)
		internal.GET("/services", registryHandler.ListServices)
		internal.GET("/services/:name", registryHandler.ServiceByName)
	}

	s.onStart = append(s.onStart, registry.Start)
	s.onShutdown = append(s.onShutdown, func(context.Context) error {
		registry.Stop()
		return nil
	})
	return s, registry, nil
}
