// Package lifecycle runs a service process: start the HTTP server, announce
// it to the registry, and tear both down on SIGINT or SIGTERM.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/apascualco/cinemesh/internal/infrastructure/jwt"
	"github.com/apascualco/cinemesh/pkg/client"
)

type Server interface {
	Run() error
	Shutdown(ctx context.Context) error
}

type Registrar interface {
	Register(ctx context.Context, req client.RegisterRequest) (*client.RegisterResponse, error)
	Shutdown(ctx context.Context) error
}

// Run blocks until ctx is done, a termination signal arrives or the server
// fails. A nil registrar skips self-registration.
func Run(ctx context.Context, cfg *config.Config, srv Server, registrar Registrar) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.Int("port", cfg.Port),
			slog.String("env", cfg.Env),
			slog.String("version", cfg.Version),
			slog.String("commit", cfg.Commit),
			slog.String("build_date", cfg.BuildDate),
		)
		serverErr <- srv.Run()
	}()

	registered := false
	if registrar != nil {
		if _, err := registrar.Register(ctx, RegisterRequest(cfg)); err != nil {
			slog.Error("self-registration failed", slog.Any("error", err))
		} else {
			registered = true
		}
	}

	var runErr error
	select {
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if registered {
		if err := registrar.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("deregister: %w", err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("server exited")
	return nil
}

// RegisterRequest describes this process as a registry instance.
func RegisterRequest(cfg *config.Config) client.RegisterRequest {
	return client.RegisterRequest{
		ServiceName: cfg.ServiceName,
		Host:        cfg.SelfHost,
		Port:        cfg.SelfPort,
		Scheme:      "http",
		HealthURL:   "/health",
		Version:     cfg.Version,
	}
}

// NewRegistrar returns a registry client when this process should announce
// itself, or nil when discovery is not backed by the registry.
func NewRegistrar(cfg *config.Config) (Registrar, error) {
	if cfg.Discovery != config.DiscoveryRegistry {
		return nil, nil
	}

	signer, err := jwt.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt service: %w", err)
	}

	opts := []client.Option{
		client.WithLogger(slog.Default()),
		client.WithAudience(cfg.JWTAudience),
	}
	if signer.CanSign() {
		opts = append(opts, client.WithTokenFunc(signer.GenerateServiceToken))
	}

	c, err := client.NewRegistryClient(cfg.RegistryURL, cfg.ServiceName, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Exit logs err and terminates the process with a failure status.
func Exit(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
