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
	cfg, err := config.LoadFor("payment-service", 8083, version, commit, buildDate)
	if err != nil {
		lifecycle.Exit("failed to load config", err)
	}

	lifecycle.SetupLogger(cfg)

	ctx := context.Background()

	s, err := http.NewPaymentServer(ctx, cfg)
	if err != nil {
		lifecycle.Exit("failed to create server", err)
	}

	registrar, err := lifecycle.NewRegistrar(cfg)
	if err != nil {
		lifecycle.Exit("failed to create registry client", err)
	}

	if err := lifecycle.Run(ctx, cfg, s, registrar); err != nil {
		lifecycle.Exit("server stopped with error", err)
	}
}
