package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/apascualco/cinemesh/internal/domain"
)

// BookingRepository keeps bookings in a map guarded by a RWMutex. Callers
// always receive copies.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking
	ids      domain.IDGenerator
}

var _ domain.BookingRepository = (*BookingRepository)(nil)

func NewBookingRepository(ids domain.IDGenerator) *BookingRepository {
	return &BookingRepository{
		bookings: make(map[string]*domain.Booking),
		ids:      ids,
	}
}

// Create checks seats and stores a copy of booking under the write lock, so
// two creates for the same seat cannot both succeed.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.assignID(ctx, booking); err != nil {
		return err
	}
	if _, ok := r.bookings[booking.ID]; ok {
		return fmt.Errorf("%w: booking %s", domain.ErrDuplicateID, booking.ID)
	}
	for _, b := range r.bookings {
		if seat := b.ConflictingSeat(booking); seat != "" {
			return fmt.Errorf("%w: seat %s is already booked for session %s", domain.ErrSeatTaken, seat, booking.SessionID)
		}
	}
	r.bookings[booking.ID] = CloneBooking(booking)
	return nil
}

// Save stores a copy of booking, assigning an id when it has none.
func (r *BookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.assignID(ctx, booking); err != nil {
		return err
	}
	r.bookings[booking.ID] = CloneBooking(booking)
	return nil
}

func (r *BookingRepository) assignID(ctx context.Context, booking *domain.Booking) error {
	if booking.ID != "" {
		return nil
	}
	id, err := r.ids.NextID(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate booking id: %w", err)
	}
	booking.ID = id
	return nil
}

func (r *BookingRepository) FindByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	return CloneBooking(b), nil
}

func (r *BookingRepository) FindAll(_ context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if filter.Matches(b) {
			result = append(result, CloneBooking(b))
		}
	}
	SortBookings(result)
	return result, nil
}

func (r *BookingRepository) Update(_ context.Context, id string, fn func(*domain.Booking) error) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}

	working := CloneBooking(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = id
	r.bookings[id] = working
	return CloneBooking(working), nil
}

func (r *BookingRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	delete(r.bookings, id)
	return nil
}

// IsSeatBooked ignores cancelled bookings, whose seats are free again.
func (r *BookingRepository) IsSeatBooked(_ context.Context, sessionID, seatID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bookings {
		if b.SessionID == sessionID && b.Status != domain.BookingCancelled && b.HasSeat(seatID) {
			return true, nil
		}
	}
	return false, nil
}

func CloneBooking(b *domain.Booking) *domain.Booking {
	c := *b
	c.Seats = slices.Clone(b.Seats)
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		c.ExpiresAt = &t
	}
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}

// SortBookings orders by creation time, then id.
func SortBookings(bookings []*domain.Booking) {
	slices.SortFunc(bookings, func(a, b *domain.Booking) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
