// Package discovery adapts the places instance lists can come from to
// domain.Lookup.
package discovery

import (
	"fmt"
	"log/slog"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/config"
)

func FromConfig(cfg *config.Config, tokens TokenSource, logger *slog.Logger) (domain.Lookup, error) {
	switch cfg.Discovery {
	case config.DiscoveryRegistry, "":
		opts := []RegistryOption{WithRegistryLogger(logger)}
		if tokens != nil {
			opts = append(opts, WithTokenSource(tokens))
		}
		return NewRegistryLookup(cfg.RegistryURL, opts...), nil
	case config.DiscoveryConsul:
		return NewConsulLookup(cfg.ConsulAddr, logger)
	case config.DiscoveryStatic:
		return ParseStatic(cfg.StaticInstances)
	default:
		return nil, fmt.Errorf("unknown discovery backend %q", cfg.Discovery)
	}
}
