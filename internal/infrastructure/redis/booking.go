package redis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/apascualco/cinemesh/internal/domain"
)

// BookingRepository stores bookings as JSON documents in Redis, indexed by
// session for seat checks.
type BookingRepository struct {
	store jsonStore[domain.Booking]
	ids   domain.IDGenerator
}

var _ domain.BookingRepository = (*BookingRepository)(nil)

func NewBookingRepository(client *Client, prefix string, ids domain.IDGenerator) *BookingRepository {
	return &BookingRepository{
		store: jsonStore[domain.Booking]{client: client, prefix: prefix, kind: "booking"},
		ids:   ids,
	}
}

// Create inserts booking after checking, inside the same WATCH transaction,
// that no active booking of its session holds any of its seats.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if booking.ID == "" {
		id, err := r.ids.NextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate booking id: %w", err)
		}
		booking.ID = id
	}

	return r.store.insert(ctx, booking.ID, booking, r.indexes(booking), domain.ErrDuplicateID, func(rd reader) error {
		held, err := r.store.indexed(ctx, rd, "session", booking.SessionID)
		if err != nil {
			return err
		}
		for _, b := range held {
			if seat := b.ConflictingSeat(booking); seat != "" {
				return fmt.Errorf("%w: seat %s is already booked for session %s", domain.ErrSeatTaken, seat, booking.SessionID)
			}
		}
		return nil
	})
}

// Save overwrites booking by id. A booking without an id is inserted, so a
// generated id never replaces an existing record.
func (r *BookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	if booking.ID == "" {
		id, err := r.ids.NextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate booking id: %w", err)
		}
		booking.ID = id
		return r.store.insert(ctx, booking.ID, booking, r.indexes(booking), domain.ErrDuplicateID, nil)
	}
	return r.store.save(ctx, booking.ID, booking, r.indexes(booking))
}

func (r *BookingRepository) indexes(b *domain.Booking) map[string]string {
	return map[string]string{"session": b.SessionID}
}

func (r *BookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := r.store.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	return b, nil
}

func (r *BookingRepository) FindAll(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	all, err := r.store.all(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Booking, 0, len(all))
	for _, b := range all {
		if filter.Matches(b) {
			result = append(result, b)
		}
	}
	slices.SortFunc(result, func(a, b *domain.Booking) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (r *BookingRepository) Update(ctx context.Context, id string, fn func(*domain.Booking) error) (*domain.Booking, error) {
	return r.store.update(ctx, id, domain.ErrBookingNotFound, func(b *domain.Booking) error {
		if err := fn(b); err != nil {
			return err
		}
		b.ID = id
		return nil
	})
}

func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	b, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return r.store.delete(ctx, id, r.indexes(b))
}

// IsSeatBooked checks the session index. The session id is checked again on
// each record since an overwrite by Save may have moved a booking.
func (r *BookingRepository) IsSeatBooked(ctx context.Context, sessionID, seatID string) (bool, error) {
	bookings, err := r.store.indexed(ctx, r.store.client, "session", sessionID)
	if err != nil {
		return false, err
	}
	for _, b := range bookings {
		if b.SessionID == sessionID && b.Status != domain.BookingCancelled && b.HasSeat(seatID) {
			return true, nil
		}
	}
	return false, nil
}
