package main

import (
	"context"

	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/apascualco/cinemesh/internal/infrastructure/http"
	"github.com/apascualco/cinemesh/internal/infrastructure/lifecycle"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.LoadFor("registry", 8500, version, commit, buildDate)
	if err != nil {
		lifecycle.Exit("failed to load config", err)
	}

	lifecycle.SetupLogger(cfg)

	s, _, err := http.NewRegistryServer(cfg)
	if err != nil {
		lifecycle.Exit("failed to create server", err)
	}

	if err := lifecycle.Run(context.Background(), cfg, s, nil); err != nil {
		lifecycle.Exit("server stopped with error", err)
	}
}
