package memory

import (
	"context"
	"errors"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
)

// Sequence starts that follow the seeded records.
const (
	BookingSequenceStart int64 = 1003
	PaymentSequenceStart int64 = 5002
)

// SeedBookings stores the demo bookings bk-1001 (confirmed) and bk-1002
// (pending). Records already present, or whose seats are taken, are left as
// they are, so a restart against a persistent store keeps current state.
func SeedBookings(ctx context.Context, repo domain.BookingRepository) error {
	confirmedAt := time.Date(2025, 10, 10, 14, 31, 15, 0, time.UTC)
	expiresAt := time.Date(2025, 10, 12, 15, 15, 0, 0, time.UTC)

	seeds := []*domain.Booking{
		{
			ID:            "bk-1001",
			SessionID:     "sess-1002",
			UserID:        "user-9001",
			CustomerName:  "Ivan Kovalchuk",
			CustomerEmail: "i.kovalchuk@gmail.com",
			Seats: []domain.Seat{
				{Row: 7, Number: 12, SeatID: "R7N12"},
				{Row: 7, Number: 13, SeatID: "R7N13"},
			},
			TotalPrice:  domain.Price{Value: 21.0, Currency: "EUR"},
			Status:      domain.BookingConfirmed,
			CreatedAt:   time.Date(2025, 10, 10, 14, 30, 0, 0, time.UTC),
			ConfirmedAt: &confirmedAt,
			Notes:       "Tickets with popcorn.",
		},
		{
			ID:            "bk-1002",
			SessionID:     "sess-1001",
			UserID:        "user-9001",
			CustomerName:  "Ivan Kovalchuk",
			CustomerEmail: "i.kovalchuk@gmail.com",
			Seats:         []domain.Seat{{Row: 4, Number: 5, SeatID: "R4N5"}},
			TotalPrice:    domain.Price{Value: 8.0, Currency: "EUR"},
			Status:        domain.BookingPending,
			CreatedAt:     time.Date(2025, 10, 12, 15, 0, 0, 0, time.UTC),
			ExpiresAt:     &expiresAt,
		},
	}

	for _, b := range seeds {
		err := repo.Create(ctx, b)
		if err != nil && !errors.Is(err, domain.ErrDuplicateID) && !errors.Is(err, domain.ErrSeatTaken) {
			return err
		}
	}
	return nil
}

// SeedPayments stores pay-5001, the completed payment for bk-1001, unless
// that id or an active payment for bk-1001 already exists.
func SeedPayments(ctx context.Context, repo domain.PaymentRepository) error {
	processedAt := time.Date(2025, 10, 10, 14, 31, 15, 0, time.UTC)

	err := repo.Create(ctx, &domain.Payment{
		ID:            "pay-5001",
		BookingID:     "bk-1001",
		Amount:        domain.Price{Value: 21.0, Currency: "EUR"},
		Method:        domain.MethodCard,
		Status:        domain.PaymentCompleted,
		TransactionID: "txn-a1b2c3d4",
		CreatedAt:     time.Date(2025, 10, 10, 14, 31, 0, 0, time.UTC),
		ProcessedAt:   &processedAt,
	})
	if errors.Is(err, domain.ErrDuplicateID) || errors.Is(err, domain.ErrPaymentExists) {
		return nil
	}
	return err
}
