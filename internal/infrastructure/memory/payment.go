package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/apascualco/cinemesh/internal/domain"
)

type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
	ids      domain.IDGenerator
}

var _ domain.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository(ids domain.IDGenerator) *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*domain.Payment),
		ids:      ids,
	}
}

// Create stores payment unless its booking already has an active payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.assignID(ctx, payment); err != nil {
		return err
	}
	if _, ok := r.payments[payment.ID]; ok {
		return fmt.Errorf("%w: payment %s", domain.ErrDuplicateID, payment.ID)
	}
	for _, p := range r.payments {
		if p.BookingID == payment.BookingID && p.Status.Active() {
			return fmt.Errorf("%w: booking %s has payment %s (%s)", domain.ErrPaymentExists, p.BookingID, p.ID, p.Status)
		}
	}
	r.payments[payment.ID] = ClonePayment(payment)
	return nil
}

func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.assignID(ctx, payment); err != nil {
		return err
	}
	r.payments[payment.ID] = ClonePayment(payment)
	return nil
}

func (r *PaymentRepository) assignID(ctx context.Context, payment *domain.Payment) error {
	if payment.ID != "" {
		return nil
	}
	id, err := r.ids.NextID(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate payment id: %w", err)
	}
	payment.ID = id
	return nil
}

func (r *PaymentRepository) FindByID(_ context.Context, id string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
	}
	return ClonePayment(p), nil
}

// FindByBookingID returns the earliest payment made against bookingID.
func (r *PaymentRepository) FindByBookingID(_ context.Context, bookingID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Payment
	for _, p := range r.payments {
		if p.BookingID != bookingID {
			continue
		}
		if found == nil || comparePayments(p, found) < 0 {
			found = p
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no payment for booking %s", domain.ErrPaymentNotFound, bookingID)
	}
	return ClonePayment(found), nil
}

// FindAll lists payments, restricted to status unless it is empty.
func (r *PaymentRepository) FindAll(_ context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		if status == "" || p.Status == status {
			result = append(result, ClonePayment(p))
		}
	}
	slices.SortFunc(result, comparePayments)
	return result, nil
}

func (r *PaymentRepository) Update(_ context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
	}

	working := ClonePayment(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = id
	r.payments[id] = working
	return ClonePayment(working), nil
}

func (r *PaymentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
	}
	delete(r.payments, id)
	return nil
}

// HasActivePayment reports a pending or completed payment for bookingID.
func (r *PaymentRepository) HasActivePayment(_ context.Context, bookingID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.BookingID == bookingID && p.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func ClonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.ProcessedAt != nil {
		t := *p.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

func comparePayments(a, b *domain.Payment) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
