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

func NewBookingServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := newServer(cfg)

	client, contracts, err := s.newCallLayer(cfg)
	if err != nil {
		return nil, err
	}
	repo, err := s.newBookingRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bookings := application.NewBookingService(repo, remote.NewMovieClient(client),
		application.WithBookingLogger(slog.Default()),
	)

	bookingHandler := handler.NewBookingHandler(bookings)
	api := s.router.Group("/api/bookings")
	api.Use(middleware.Deadline(cfg.CallTimeout))
	{
		api.GET("", bookingHandler.List)
		api.POST("", bookingHandler.Create)
		api.GET("/health/dependencies", bookingHandler.Dependencies)
		api.GET("/:id", bookingHandler.Get)
		api.PUT("/:id", bookingHandler.Update)
		api.DELETE("/:id", bookingHandler.Delete)
		api.POST("/:id/cancel", bookingHandler.Cancel)
	}
	s.router.GET("/api/contracts/:name", handler.NewContractHandler(contracts).Get)

	return s, nil
}
