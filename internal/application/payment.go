package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
)

const amountTolerance = 0.01

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// BookingSource is the payment service's dependency on booking-service.
type BookingSource interface {
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	Healthy(ctx context.Context) bool
	Info(ctx context.Context) string
}

type SettlementScheduler interface {
	Submit(payment *domain.Payment) (domain.SettlementJob, error)
}

type PaymentService struct {
	payments   domain.PaymentRepository
	bookings   BookingSource
	settlement SettlementScheduler
	now        func() time.Time
	logger     *slog.Logger
}

type PaymentOption func(*PaymentService)

func WithPaymentLogger(logger *slog.Logger) PaymentOption {
	return func(s *PaymentService) {
		s.logger = logger
	}
}

func NewPaymentService(payments domain.PaymentRepository, bookings BookingSource, settlement SettlementScheduler, opts ...PaymentOption) *PaymentService {
	s := &PaymentService{
		payments:   payments,
		bookings:   bookings,
		settlement: settlement,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a PENDING payment for a payable booking and hands it to
// settlement. The returned payment is always PENDING; capture and booking
// confirmation happen later.
func (s *PaymentService) Create(ctx context.Context, req domain.CreatePaymentRequest) (*domain.Payment, error) {
	method, err := validatePaymentRequest(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.payments.HasActivePayment(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: booking %s", domain.ErrPaymentExists, req.BookingID)
	}

	booking, err := s.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			return nil, fmt.Errorf("%w: booking %s not found in booking-service: %w", domain.ErrInvalidRequest, req.BookingID, err)
		}
		return nil, fmt.Errorf("cannot validate booking %s: %w", req.BookingID, err)
	}

	if !booking.Status.Payable() {
		return nil, domain.Invalid("bookingId",
			"booking %s is not in valid state for payment, current status: %s", booking.ID, booking.Status)
	}
	if math.Abs(req.Amount.Value-booking.TotalPrice.Value) > amountTolerance {
		return nil, domain.Invalid("amount",
			"payment amount mismatch: requested %.2f %s, booking total is %.2f %s",
			req.Amount.Value, req.Amount.Currency, booking.TotalPrice.Value, booking.TotalPrice.Currency)
	}
	if req.Amount.Currency != booking.TotalPrice.Currency {
		return nil, domain.Invalid("amount.currency",
			"currency mismatch: payment is %s, booking is %s", req.Amount.Currency, booking.TotalPrice.Currency)
	}

	payment := &domain.Payment{
		BookingID: req.BookingID,
		Amount:    *req.Amount,
		Method:    method,
		Status:    domain.PaymentPending,
		CreatedAt: s.now(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrPaymentExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.logger.Info("payment created",
		"payment_id", payment.ID,
		"booking_id", payment.BookingID,
		"amount", payment.Amount.Value,
		"currency", payment.Amount.Currency,
	)

	if _, err := s.settlement.Submit(payment); err != nil {
		s.logger.Error("payment left pending, settlement not scheduled",
			"payment_id", payment.ID,
			"error", err,
		)
	}

	return payment, nil
}

func validatePaymentRequest(req domain.CreatePaymentRequest) (domain.PaymentMethod, error) {
	if req.BookingID == "" {
		return "", domain.Invalid("bookingId", "is required")
	}
	if req.Amount == nil {
		return "", domain.Invalid("amount", "is required")
	}
	if req.Amount.Value <= 0 {
		return "", domain.Invalid("amount.value", "must be positive")
	}
	if !currencyCode.MatchString(req.Amount.Currency) {
		return "", domain.Invalid("amount.currency", "must be a 3-letter ISO currency code, got %q", req.Amount.Currency)
	}
	return domain.ParsePaymentMethod(req.Method)
}

func (s *PaymentService) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return s.payments.FindByID(ctx, id)
}

func (s *PaymentService) GetByBooking(ctx context.Context, bookingID string) (*domain.Payment, error) {
	return s.payments.FindByBookingID(ctx, bookingID)
}

// List returns every payment, or those in status when it is not empty.
func (s *PaymentService) List(ctx context.Context, status string) ([]*domain.Payment, error) {
	var st domain.PaymentStatus
	if status != "" {
		parsed, err := domain.ParsePaymentStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	return s.payments.FindAll(ctx, st)
}

// Refund is only allowed from COMPLETED.
func (s *PaymentService) Refund(ctx context.Context, id string, req domain.RefundRequest) (*domain.RefundResponse, error) {
	refunded, err := s.payments.Update(ctx, id, func(p *domain.Payment) error {
		switch p.Status {
		case domain.PaymentCompleted:
		case domain.PaymentRefunded:
			return fmt.Errorf("%w: payment %s has already been refunded", domain.ErrInvalidTransition, id)
		default:
			return fmt.Errorf("%w: can only refund completed payments, current status: %s", domain.ErrInvalidTransition, p.Status)
		}
		now := s.now()
		p.Status = domain.PaymentRefunded
		p.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "Not specified"
	}

	s.logger.Info("payment refunded", "payment_id", id, "reason", reason)

	return &domain.RefundResponse{
		Message:    "Payment refunded successfully",
		PaymentID:  refunded.ID,
		BookingID:  refunded.BookingID,
		Amount:     refunded.Amount,
		RefundedAt: *refunded.ProcessedAt,
		Reason:     reason,
	}, nil
}

func (s *PaymentService) Delete(ctx context.Context, id string) error {
	return s.payments.Delete(ctx, id)
}

func (s *PaymentService) DependencyHealth(ctx context.Context) domain.DependencyStatus {
	return domain.DependencyStatus{
		Service: "booking-service",
		Healthy: s.bookings.Healthy(ctx),
		Details: s.bookings.Info(ctx),
	}
}
