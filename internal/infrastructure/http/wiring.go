package http

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/apascualco/cinemesh/internal/infrastructure/discovery"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/handler"
	"github.com/apascualco/cinemesh/internal/infrastructure/memory"
	"github.com/apascualco/cinemesh/internal/infrastructure/redis"
	"github.com/apascualco/cinemesh/internal/infrastructure/remote"
)

// newLookup builds the configured discovery backend, signing registry reads
// when a private key is available.
func newLookup(cfg *config.Config) (domain.Lookup, error) {
	jwtService, err := newJWTService(cfg)
	if err != nil {
		return nil, err
	}
	var tokens discovery.TokenSource
	if jwtService.CanSign() {
		tokens = jwtService
	}

	lookup, err := discovery.FromConfig(cfg, tokens, slog.Default())
	if err != nil {
		return nil, err
	}
	slog.Info("service discovery configured", "backend", cfg.Discovery, "lb_strategy", cfg.LBStrategy)
	return lookup, nil
}

// newCallLayer assembles lookup, balancing and contract checks into the
// failover client used for every outbound call.
func (s *Server) newCallLayer(cfg *config.Config) (*remote.Client, *application.ContractValidator, error) {
	lookup, err := newLookup(cfg)
	if err != nil {
		return nil, nil, err
	}

	contracts := application.NewContractValidator(application.WithStrictContracts(cfg.ContractStrict))
	client := remote.NewClient(lookup, application.NewLoadBalancer(cfg.LBStrategy), contracts,
		remote.WithLogger(slog.Default()),
		remote.WithMetrics(s.metrics),
		remote.WithAttemptTimeout(cfg.AttemptTimeout),
		remote.WithHeader("X-Caller-Service", cfg.ServiceName),
	)
	return client, contracts, nil
}

func (s *Server) redisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("STORE=redis requires REDIS_URL")
	}
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	s.readyChecks = append(s.readyChecks, handler.ReadyCheck{Name: "redis", Check: client.Ready})
	s.onShutdown = append(s.onShutdown, func(context.Context) error { return client.Close() })
	slog.Info("using redis store")
	return client, nil
}

// idGenerator picks the id source. A sequence kept in Redis is shared by
// every replica on the store; an in-process one is not.
func idGenerator(cfg *config.Config, client *redis.Client, kind, prefix string, start int64) domain.IDGenerator {
	if client != nil && cfg.IDStrategy != memory.IDStrategyUUID {
		return redis.NewSequenceGenerator(client, cfg.ServiceName+":"+kind+":seq", prefix, start)
	}
	return memory.NewIDGenerator(cfg.IDStrategy, prefix, start)
}

func (s *Server) newBookingRepository(ctx context.Context, cfg *config.Config) (domain.BookingRepository, error) {
	var repo domain.BookingRepository
	switch cfg.Store {
	case config.StoreMemory, "":
		repo = memory.NewBookingRepository(idGenerator(cfg, nil, "booking", "bk", memory.BookingSequenceStart))
	case config.StoreRedis:
		client, err := s.redisClient(cfg)
		if err != nil {
			return nil, err
		}
		repo = redis.NewBookingRepository(client, cfg.ServiceName, idGenerator(cfg, client, "booking", "bk", memory.BookingSequenceStart))
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.SeedData {
		if err := memory.SeedBookings(ctx, repo); err != nil {
			return nil, fmt.Errorf("failed to seed bookings: %w", err)
		}
	}
	return repo, nil
}

func (s *Server) newPaymentRepository(ctx context.Context, cfg *config.Config) (domain.PaymentRepository, error) {
	var repo domain.PaymentRepository
	switch cfg.Store {
	case config.StoreMemory, "":
		repo = memory.NewPaymentRepository(idGenerator(cfg, nil, "payment", "pay", memory.PaymentSequenceStart))
	case config.StoreRedis:
		client, err := s.redisClient(cfg)
		if err != nil {
			return nil, err
		}
		repo = redis.NewPaymentRepository(client, cfg.ServiceName, idGenerator(cfg, client, "payment", "pay", memory.PaymentSequenceStart))
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.SeedData {
		if err := memory.SeedPayments(ctx, repo); err != nil {
			return nil, fmt.Errorf("failed to seed payments: %w", err)
		}
	}
	return repo, nil
}
