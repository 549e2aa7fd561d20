package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/observability"
	"github.com/google/uuid"
)

var (
	ErrSettlementQueueFull = errors.New("settlement queue full")
	ErrSettlementClosed    = errors.New("settlement coordinator shut down")
	ErrCaptureDeclined     = errors.New("payment capture declined")
)

// Capturer takes the money for a payment. A nil error means the funds moved.
type Capturer interface {
	Capture(ctx context.Context, payment *domain.Payment) error
}

// Confirmer delivers a confirmation job to the service that owns the entity.
type Confirmer interface {
	Confirm(ctx context.Context, job domain.ConfirmationJob) error
}

type SettlementConfig struct {
	Workers        int
	QueueSize      int
	BookingService string
}

// SettlementCoordinator settles PENDING payments off the request path.
// Each job captures once, records the result on the payment and, only when
// the capture succeeded, asks the booking service to confirm the booking.
// A failed confirmation is logged and counted; it is never retried and the
// payment is never rolled back.
type SettlementCoordinator struct {
	config    SettlementConfig
	payments  domain.PaymentRepository
	capturer  Capturer
	confirmer Confirmer
	metrics   observability.Metrics
	logger    *slog.Logger
	onSettled func(domain.SettlementJob, *domain.Payment)
	now       func() time.Time

	jobs    chan domain.SettlementJob
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	started bool
	closed  bool
}

type SettlementOption func(*SettlementCoordinator)

func WithSettlementLogger(logger *slog.Logger) SettlementOption {
	return func(s *SettlementCoordinator) {
		s.logger = logger
	}
}

func WithSettlementMetrics(metrics observability.Metrics) SettlementOption {
	return func(s *SettlementCoordinator) {
		s.metrics = metrics
	}
}

// OnSettled registers a hook called once per job after it reaches a final state.
func OnSettled(fn func(domain.SettlementJob, *domain.Payment)) SettlementOption {
	return func(s *SettlementCoordinator) {
		s.onSettled = fn
	}
}

func NewSettlementCoordinator(config SettlementConfig, payments domain.PaymentRepository, capturer Capturer, confirmer Confirmer, opts ...SettlementOption) *SettlementCoordinator {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.BookingService == "" {
		config.BookingService = "booking-service"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SettlementCoordinator{
		config:    config,
		payments:  payments,
		capturer:  capturer,
		confirmer: confirmer,
		metrics:   observability.Noop{},
		logger:    slog.Default(),
		now:       time.Now,
		jobs:      make(chan domain.SettlementJob, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SettlementCoordinator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.closed {
		return
	}
	s.started = true

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i + 1)
	}

	s.logger.Info("settlement coordinator started",
		"workers", s.config.Workers,
		"queue_size", s.config.QueueSize,
	)
}

// Submit schedules settlement for a payment that is already persisted as
// PENDING. It never blocks: a full queue rejects the job and the payment
// stays PENDING.
func (s *SettlementCoordinator) Submit(payment *domain.Payment) (domain.SettlementJob, error) {
	job := domain.SettlementJob{
		ID:          uuid.NewString(),
		PaymentID:   payment.ID,
		BookingID:   payment.BookingID,
		State:       domain.SettlementScheduled,
		ScheduledAt: s.now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return job, ErrSettlementClosed
	}

	select {
	case s.jobs <- job:
		s.metrics.Set(observability.SettlementQueueDepth, float64(len(s.jobs)), nil)
		s.logger.Debug("settlement scheduled", "job_id", job.ID, "payment_id", job.PaymentID)
		return job, nil
	default:
		s.metrics.Incr(observability.SettlementRejected, nil)
		s.logger.Error("settlement queue full, payment left pending",
			"payment_id", payment.ID,
			"booking_id", payment.BookingID,
		)
		return job, ErrSettlementQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. If ctx ends first, in-flight work is cancelled and ctx.Err() is
// returned once the workers have exited.
func (s *SettlementCoordinator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	started := s.started
	s.mu.Unlock()

	if !started {
		s.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("settlement coordinator stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		s.logger.Warn("settlement coordinator stopped before queue drained", "error", ctx.Err())
		return ctx.Err()
	}
}

func (s *SettlementCoordinator) worker(id int) {
	defer s.wg.Done()
	for job := range s.jobs {
		s.run(id, job)
	}
}

func (s *SettlementCoordinator) run(workerID int, job domain.SettlementJob) {
	var settled *domain.Payment
	defer func() {
		if r := recover(); r != nil {
			job.State = domain.SettlementFailed
			s.metrics.Incr(observability.SettlementPanics, nil)
			s.logger.Error("panic in settlement job",
				"job_id", job.ID,
				"payment_id", job.PaymentID,
				"error", r,
				"stack", string(debug.Stack()),
			)
		}
		s.metrics.Incr(observability.SettlementJobs, map[string]string{"state": string(job.State)})
		if s.onSettled != nil {
			s.onSettled(job, settled)
		}
	}()

	job.State = domain.SettlementRunning
	logger := s.logger.With("job_id", job.ID, "payment_id", job.PaymentID, "worker", workerID)

	payment, err := s.payments.FindByID(s.ctx, job.PaymentID)
	if err != nil {
		job.State = domain.SettlementFailed
		logger.Error("settlement aborted, payment not readable", "error", err)
		return
	}

	logger.Info("capturing payment", "amount", payment.Amount.Value, "currency", payment.Amount.Currency)

	if err := s.capturer.Capture(s.ctx, payment); err != nil {
		job.State = domain.SettlementFailed
		if s.ctx.Err() != nil {
			logger.Warn("settlement interrupted by shutdown, payment left pending", "error", err)
			return
		}
		settled, err = s.payments.Update(s.ctx, job.PaymentID, func(p *domain.Payment) error {
			if p.Status != domain.PaymentPending {
				return fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
			}
			p.Status = domain.PaymentFailed
			return nil
		})
		if err != nil {
			logger.Error("failed to record failed capture", "error", err)
			return
		}
		logger.Warn("payment capture failed", "booking_id", job.BookingID)
		return
	}

	now := s.now()
	settled, err = s.payments.Update(s.ctx, job.PaymentID, func(p *domain.Payment) error {
		if p.Status != domain.PaymentPending {
			return fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
		}
		p.Status = domain.PaymentCompleted
		p.TransactionID = newTransactionID()
		p.ProcessedAt = &now
		return nil
	})
	if err != nil {
		job.State = domain.SettlementFailed
		logger.Error("failed to record completed capture", "error", err)
		return
	}
	job.State = domain.SettlementSucceeded
	logger.Info("payment completed", "transaction_id", settled.TransactionID)

	confirmation := domain.NewBookingConfirmation(s.config.BookingService, settled.BookingID)
	if err := s.confirmer.Confirm(s.ctx, confirmation); err != nil {
		s.metrics.Incr(observability.SettlementConfirmationFails, nil)
		logger.Warn("payment completed but booking confirmation failed, manual intervention may be required",
			"booking_id", confirmation.TargetEntityID,
			"target_service", confirmation.TargetService,
			"error", err,
		)
		return
	}
	logger.Info("booking confirmed", "booking_id", confirmation.TargetEntityID)
}

func newTransactionID() string {
	return "txn-" + uuid.NewString()[:8]
}

// SimulatedCapturer stands in for a payment provider: it waits a fixed
// latency and then succeeds with a fixed probability.
type SimulatedCapturer struct {
	latency     time.Duration
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedCapturer uses rng when given and the global source otherwise.
func NewSimulatedCapturer(latency time.Duration, successRate float64, rng *rand.Rand) *SimulatedCapturer {
	return &SimulatedCapturer{
		latency:     latency,
		successRate: successRate,
		rng:         rng,
	}
}

func (c *SimulatedCapturer) Capture(ctx context.Context, payment *domain.Payment) error {
	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.draw() >= c.successRate {
		return fmt.Errorf("%w: payment %s", ErrCaptureDeclined, payment.ID)
	}
	return nil
}

func (c *SimulatedCapturer) draw() float64 {
	if c.rng == nil {
		return rand.Float64()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64()
}
