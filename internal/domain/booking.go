package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return st, nil
	}
	return "", Invalid("status", "invalid booking status %q, allowed values: PENDING, CONFIRMED, CANCELLED", s)
}

// CanTransitionTo reports whether a booking in s may move to next.
// CANCELLED is terminal and a CONFIRMED booking never returns to PENDING.
func (s BookingStatus) CanTransitionTo(next BookingStatus) error {
	if s == BookingCancelled {
		return fmt.Errorf("%w: cannot change status of cancelled booking", ErrInvalidTransition)
	}
	if s == BookingConfirmed && next == BookingPending {
		return fmt.Errorf("%w: cannot change confirmed booking back to pending", ErrInvalidTransition)
	}
	return nil
}

// Payable reports whether a payment may be taken against a booking in s.
func (s BookingStatus) Payable() bool {
	return s == BookingPending || s == BookingConfirmed
}

type Price struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type Seat struct {
	Row    int    `json:"row"`
	Number int    `json:"number"`
	SeatID string `json:"seatId"`
}

type Booking struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"sessionId"`
	UserID        string        `json:"userId"`
	CustomerName  string        `json:"customerName"`
	CustomerEmail string        `json:"customerEmail"`
	Seats         []Seat        `json:"seats"`
	TotalPrice    Price         `json:"totalPrice"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	ExpiresAt     *time.Time    `json:"expiresAt,omitempty"`
	ConfirmedAt   *time.Time    `json:"confirmedAt,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

func (b *Booking) HasSeat(seatID string) bool {
	for _, s := range b.Seats {
		if s.SeatID == seatID {
			return true
		}
	}
	return false
}

type CreateBookingRequest struct {
	SessionID     string `json:"sessionId" binding:"required"`
	UserID        string `json:"userId" binding:"required"`
	CustomerName  string `json:"customerName" binding:"required"`
	CustomerEmail string `json:"customerEmail" binding:"required,email"`
	Seats         []Seat `json:"seats" binding:"required"`
	Notes         string `json:"notes"`
}

func (r *CreateBookingRequest) Validate() error {
	if r.SessionID == "" {
		return Invalid("sessionId", "is required")
	}
	if r.UserID == "" {
		return Invalid("userId", "is required")
	}
	if len(r.Seats) == 0 {
		return Invalid("seats", "at least one seat must be selected")
	}
	if r.CustomerName == "" {
		return Invalid("customerName", "is required")
	}
	if r.CustomerEmail == "" {
		return Invalid("customerEmail", "is required")
	}
	seen := make(map[string]bool, len(r.Seats))
	for _, seat := range r.Seats {
		if seat.SeatID == "" {
			return Invalid("seats", "seatId is required")
		}
		if seen[seat.SeatID] {
			return Invalid("seats", "seat %s is listed more than once", seat.SeatID)
		}
		seen[seat.SeatID] = true
	}
	return nil
}

// ConflictingSeat returns the first seat of other already held by b, or ""
// when they share none. Cancelled bookings and other sessions hold nothing.
func (b *Booking) ConflictingSeat(other *Booking) string {
	if b.SessionID != other.SessionID || b.Status == BookingCancelled {
		return ""
	}
	for _, s := range other.Seats {
		if b.HasSeat(s.SeatID) {
			return s.SeatID
		}
	}
	return ""
}

// UpdateBookingRequest is a partial update: nil fields are left untouched.
type UpdateBookingRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

type BookingFilter struct {
	UserID string
	Status BookingStatus
}

func (f BookingFilter) Matches(b *Booking) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}
