package http

import (
	"context"
	"log/slog"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/handler"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/middleware"
	"github.com/apascualco/cinemesh/internal/infrastructure/remote"
)

func NewPaymentServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := newServer(cfg)

	client, contracts, err := s.newCallLayer(cfg)
	if err != nil {
		return nil, err
	}
	repo, err := s.newPaymentRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bookingClient := remote.NewBookingClient(client)
	settlement := application.NewSettlementCoordinator(
		application.SettlementConfig{
			Workers:        cfg.SettlementWorkers,
			QueueSize:      cfg.SettlementQueue,
			BookingService: remote.BookingService,
		},
		repo,
		application.NewSimulatedCapturer(cfg.CaptureLatency, cfg.CaptureSuccessRate, nil),
		bookingClient,
		application.WithSettlementLogger(slog.Default()),
		application.WithSettlementMetrics(s.metrics),
	)
	s.onStart = append(s.onStart, settlement.Start)
	s.onShutdown = append(s.onShutdown, settlement.Shutdown)

	payments := application.NewPaymentService(repo, bookingClient, settlement,
		application.WithPaymentLogger(slog.Default()),
	)

	paymentHandler := handler.NewPaymentHandler(payments)
	api := s.router.Group("/api/payments")
	api.Use(middleware.Deadline(cfg.CallTimeout))
	{
		api.GET("", paymentHandler.List)
		api.POST("", paymentHandler.Create)
		api.GET("/health/dependencies", paymentHandler.Dependencies)
		api.GET("/:id", paymentHandler.Get)
		api.DELETE("/:id", paymentHandler.Delete)
		api.POST("/:id/refund", paymentHandler.Refund)
	}
	s.router.GET("/api/contracts/:name", handler.NewContractHandler(contracts).Get)

	return s, nil
}
