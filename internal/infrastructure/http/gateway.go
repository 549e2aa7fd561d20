package http

import (
	"fmt"
	"log/slog"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/middleware"
	"github.com/apascualco/cinemesh/internal/infrastructure/proxy"
)

// NewGatewayServer is the public entry point: every routed path is proxied
// to an instance of its service, or answered with a 503 fallback.
func NewGatewayServer(cfg *config.Config) (*Server, error) {
	s := newServer(cfg)

	routes := proxy.DefaultRoutes()
	if cfg.GatewayRoutes != "" {
		parsed, err := proxy.ParseRoutes(cfg.GatewayRoutes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse gateway routes: %w", err)
		}
		routes = parsed
	}

	lookup, err := newLookup(cfg)
	if err != nil {
		return nil, err
	}

	proxyHandler := proxy.NewProxyHandler(routes, lookup, application.NewLoadBalancer(cfg.LBStrategy),
		proxy.WithLogger(slog.Default()),
	)
	s.router.NoRoute(middleware.Deadline(cfg.CallTimeout), proxyHandler.Handle)

	for _, r := range routes {
		slog.Info("gateway route", "pattern", r.Pattern, "service", r.Service)
	}
	return s, nil
}
