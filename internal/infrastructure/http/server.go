package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/handler"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/middleware"
	"github.com/apascualco/cinemesh/internal/infrastructure/jwt"
	"github.com/apascualco/cinemesh/internal/infrastructure/observability"
	"github.com/gin-gonic/gin"
)

// Server is the HTTP shell shared by the registry, booking and payment
// services. Each service adds its routes and lifecycle hooks.
type Server struct {
	router     *gin.Engine
	config     *config.Config
	httpServer *http.Server
	startTime  time.Time
	metrics    *observability.Prometheus

	readyChecks []handler.ReadyCheck
	onStart     []func()
	onShutdown  []func(ctx context.Context) error
}

func newServer(cfg *config.Config) *Server {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    cfg,
		startTime: time.Now(),
		metrics:   observability.NewPrometheus(metricsNamespace(cfg.ServiceName)),
	}

	s.router = gin.New()
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.metrics))
	s.router.Use(middleware.Logger(slog.Default()))
	s.router.Use(middleware.Metrics(s.metrics))

	s.router.GET("/health", handler.HealthHandler(s.startTime, cfg.ServiceName, cfg.Version))
	s.router.GET("/ready", func(c *gin.Context) {
		handler.ReadyHandler(s.readyChecks...)(c)
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Metrics() *observability.Prometheus {
	return s.metrics
}

func (s *Server) Run() error {
	s.start()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) start() {
	for _, fn := range s.onStart {
		fn()
	}
}

// Shutdown stops accepting requests first, then releases background work in
// the order it was registered.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range s.onShutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newJWTService(cfg *config.Config) (*jwt.Service, error) {
	if cfg.JWTPublicKey == "" && cfg.JWTPrivateKey == "" {
		return nil, nil
	}
	svc, err := jwt.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	return svc, nil
}

func metricsNamespace(serviceName string) string {
	out := make([]rune, 0, len(serviceName))
	for _, r := range serviceName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
