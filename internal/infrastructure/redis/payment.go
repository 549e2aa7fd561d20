package redis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/apascualco/cinemesh/internal/domain"
)

type PaymentRepository struct {
	store jsonStore[domain.Payment]
	ids   domain.IDGenerator
}

var _ domain.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository(client *Client, prefix string, ids domain.IDGenerator) *PaymentRepository {
	return &PaymentRepository{
		store: jsonStore[domain.Payment]{client: client, prefix: prefix, kind: "payment"},
		ids:   ids,
	}
}

// Create inserts payment unless its booking already has a pending or
// completed payment, checked inside the insert transaction.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if err := r.assignID(ctx, payment); err != nil {
		return err
	}

	return r.store.insert(ctx, payment.ID, payment, r.indexes(payment), domain.ErrDuplicateID, func(rd reader) error {
		existing, err := r.store.indexed(ctx, rd, "booking", payment.BookingID)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.BookingID == payment.BookingID && p.Status.Active() {
				return fmt.Errorf("%w: booking %s has payment %s (%s)", domain.ErrPaymentExists, p.BookingID, p.ID, p.Status)
			}
		}
		return nil
	})
}

// Save overwrites payment by id; a payment without an id is inserted.
func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == "" {
		if err := r.assignID(ctx, payment); err != nil {
			return err
		}
		return r.store.insert(ctx, payment.ID, payment, r.indexes(payment), domain.ErrDuplicateID, nil)
	}
	return r.store.save(ctx, payment.ID, payment, r.indexes(payment))
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

func (r *PaymentRepository) indexes(p *domain.Payment) map[string]string {
	return map[string]string{"booking": p.BookingID}
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := r.store.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
	}
	return p, nil
}

func (r *PaymentRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	payments, err := r.store.indexed(ctx, r.store.client, "booking", bookingID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, fmt.Errorf("%w: no payment for booking %s", domain.ErrPaymentNotFound, bookingID)
	}
	sortPayments(payments)
	return payments[0], nil
}

func (r *PaymentRepository) FindAll(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	all, err := r.store.all(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Payment, 0, len(all))
	for _, p := range all {
		if status == "" || p.Status == status {
			result = append(result, p)
		}
	}
	sortPayments(result)
	return result, nil
}

func (r *PaymentRepository) Update(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	return r.store.update(ctx, id, domain.ErrPaymentNotFound, func(p *domain.Payment) error {
		if err := fn(p); err != nil {
			return err
		}
		p.ID = id
		return nil
	})
}

func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return r.store.delete(ctx, id, r.indexes(p))
}

func (r *PaymentRepository) HasActivePayment(ctx context.Context, bookingID string) (bool, error) {
	payments, err := r.store.indexed(ctx, r.store.client, "booking", bookingID)
	if err != nil {
		return false, err
	}
	for _, p := range payments {
		if p.BookingID == bookingID && p.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func sortPayments(payments []*domain.Payment) {
	slices.SortFunc(payments, func(a, b *domain.Payment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
