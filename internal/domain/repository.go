package domain

import "context"

// Lookup resolves a logical service name to its live instances. An empty
// result is the "currently unavailable" signal, not an error.
type Lookup interface {
	Resolve(ctx context.Context, serviceName string) []*ServiceInstance
}

// BookingRepository persists bookings (output port). Create inserts a new
// booking, assigning an id when it has none, and fails with ErrSeatTaken
// when an active booking of the same session holds one of its seats, or with
// ErrDuplicateID when the id is taken. The seat check and the write are one
// atomic step. Save overwrites by id. Update runs fn atomically against the
// stored record and saves what fn leaves behind.
type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	Save(ctx context.Context, booking *Booking) error
	FindByID(ctx context.Context, id string) (*Booking, error)
	FindAll(ctx context.Context, filter BookingFilter) ([]*Booking, error)
	Update(ctx context.Context, id string, fn func(*Booking) error) (*Booking, error)
	Delete(ctx context.Context, id string) error
	IsSeatBooked(ctx context.Context, sessionID, seatID string) (bool, error)
}

// PaymentRepository persists payments. Create fails with ErrPaymentExists
// when the booking already has an active (pending or completed) payment, or
// with ErrDuplicateID when the id is taken, checked and written atomically.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Save(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id string) (*Payment, error)
	FindByBookingID(ctx context.Context, bookingID string) (*Payment, error)
	FindAll(ctx context.Context, status PaymentStatus) ([]*Payment, error)
	Update(ctx context.Context, id string, fn func(*Payment) error) (*Payment, error)
	Delete(ctx context.Context, id string) error
	HasActivePayment(ctx context.Context, bookingID string) (bool, error)
}

// IDGenerator hands out entity identifiers; each store owns one. Ids must
// stay unique across every process sharing the store.
type IDGenerator interface {
	NextID(ctx context.Context) (string, error)
}
