package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
)

const DefaultBookingHold = 15 * time.Minute

// SessionSource is the booking service's dependency on movie-service.
type SessionSource interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	Healthy(ctx context.Context) bool
	Info(ctx context.Context) string
}

type BookingService struct {
	bookings domain.BookingRepository
	sessions SessionSource
	hold     time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type BookingOption func(*BookingService)

func WithBookingLogger(logger *slog.Logger) BookingOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

// WithBookingHold sets how long a PENDING booking holds its seats.
func WithBookingHold(d time.Duration) BookingOption {
	return func(s *BookingService) {
		if d > 0 {
			s.hold = d
		}
	}
}

func NewBookingService(bookings domain.BookingRepository, sessions SessionSource, opts ...BookingOption) *BookingService {
	s := &BookingService{
		bookings: bookings,
		sessions: sessions,
		hold:     DefaultBookingHold,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create books seats in a session after checking with movie-service that the
// session exists, is scheduled and has room. A session that does not exist
// is a rejected request, while an unreachable movie-service surfaces as
// ErrDependencyUnavailable.
func (s *BookingService) Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session %s not found in movie-service: %w", domain.ErrInvalidRequest, req.SessionID, err)
		}
		return nil, fmt.Errorf("cannot validate session %s: %w", req.SessionID, err)
	}

	if !session.IsScheduled() {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrSessionUnavailable, req.SessionID, session.Status)
	}
	if session.AvailableSeats < len(req.Seats) {
		return nil, fmt.Errorf("%w: not enough available seats in session %s", domain.ErrSessionUnavailable, req.SessionID)
	}

	now := s.now()
	expiresAt := now.Add(s.hold)
	booking := &domain.Booking{
		SessionID:     req.SessionID,
		UserID:        req.UserID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Seats:         append([]domain.Seat(nil), req.Seats...),
		TotalPrice: domain.Price{
			Value:    session.Price.Value * float64(len(req.Seats)),
			Currency: session.Price.Currency,
		},
		Status:    domain.BookingPending,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
		Notes:     req.Notes,
	}

	// The repository checks the seats and stores the booking in one step.
	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrSeatTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.logger.Info("booking created",
		"booking_id", booking.ID,
		"session_id", booking.SessionID,
		"seats", len(booking.Seats),
		"total", booking.TotalPrice.Value,
	)
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.FindByID(ctx, id)
}

func (s *BookingService) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	return s.bookings.FindAll(ctx, filter)
}

// Update applies a partial update. Moving to CONFIRMED stamps confirmedAt
// and drops the expiry hold.
func (s *BookingService) Update(ctx context.Context, id string, req domain.UpdateBookingRequest) (*domain.Booking, error) {
	var next domain.BookingStatus
	if req.Status != nil {
		st, err := domain.ParseBookingStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		next = st
	}

	updated, err := s.bookings.Update(ctx, id, func(b *domain.Booking) error {
		if next != "" {
			if err := b.Status.CanTransitionTo(next); err != nil {
				return err
			}
			if next == domain.BookingConfirmed && b.Status != domain.BookingConfirmed {
				now := s.now()
				b.ConfirmedAt = &now
				b.ExpiresAt = nil
			}
			b.Status = next
		}
		if req.Notes != nil {
			b.Notes = *req.Notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if next != "" {
		s.logger.Info("booking updated", "booking_id", id, "status", updated.Status)
	}
	return updated, nil
}

func (s *BookingService) Cancel(ctx context.Context, id string) (*domain.Booking, error) {
	updated, err := s.bookings.Update(ctx, id, func(b *domain.Booking) error {
		if b.Status == domain.BookingCancelled {
			return fmt.Errorf("%w: booking is already cancelled", domain.ErrInvalidTransition)
		}
		b.Status = domain.BookingCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled", "booking_id", id)
	return updated, nil
}

func (s *BookingService) Delete(ctx context.Context, id string) error {
	return s.bookings.Delete(ctx, id)
}

// DependencyHealth reports on movie-service without calling it.
func (s *BookingService) DependencyHealth(ctx context.Context) domain.DependencyStatus {
	return domain.DependencyStatus{
		Service: "movie-service",
		Healthy: s.sessions.Healthy(ctx),
		Details: s.sessions.Info(ctx),
	}
}
