package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	sessions map[string]*domain.Session
	err      error
	calls    atomic.Int32
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (*domain.Session, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Healthy(context.Context) bool {
	return f.err == nil
}

func (f *fakeSessions) Info(context.Context) string {
	return "Service: movie-service, Instances: 1"
}

func scheduledSession(id string, seats int) *domain.Session {
	return &domain.Session{
		ID:             id,
		MovieID:        "mov-1",
		HallID:         "hall-1",
		Price:          domain.Price{Value: 12.5, Currency: "EUR"},
		AvailableSeats: seats,
		Status:         domain.SessionScheduled,
	}
}

func newBookingService(t *testing.T, sessions *fakeSessions) *BookingService {
	t.Helper()
	repo := memory.NewBookingRepository(memory.NewSequenceGenerator("bk", memory.BookingSequenceStart))
	require.NoError(t, memory.SeedBookings(context.Background(), repo))
	svc := NewBookingService(repo, sessions)
	svc.now = func() time.Time { return time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func createRequest(sessionID string, seats ...string) domain.CreateBookingRequest {
	req := domain.CreateBookingRequest{
		SessionID:     sessionID,
		UserID:        "user-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
	}
	for i, s := range seats {
		req.Seats = append(req.Seats, domain.Seat{Row: 1, Number: i + 1, SeatID: s})
	}
	return req
}

func TestBookingService_Create(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*domain.Session{"sess-1001": scheduledSession("sess-1001", 160)}}
	svc := newBookingService(t, sessions)

	booking, err := svc.Create(context.Background(), createRequest("sess-1001", "R1N1", "R1N2"))

	require.NoError(t, err)
	assert.Equal(t, "bk-1003", booking.ID)
	assert.Equal(t, domain.BookingPending, booking.Status)
	assert.Equal(t, domain.Price{Value: 25, Currency: "EUR"}, booking.TotalPrice)
	require.NotNil(t, booking.ExpiresAt)
	assert.Equal(t, 15*time.Minute, booking.ExpiresAt.Sub(booking.CreatedAt))
}

func TestBookingService_CreateRejections(t *testing.T) {
	cancelled := scheduledSession("sess-2000", 100)
	cancelled.Status = domain.SessionCancelled

	sessions := &fakeSessions{sessions: map[string]*domain.Session{
		"sess-1001": scheduledSession("sess-1001", 160),
		"sess-2000": cancelled,
		"sess-3000": scheduledSession("sess-3000", 1),
	}}

	tests := []struct {
		name string
		req  domain.CreateBookingRequest
		want error
	}{
		{"no seats", createRequest("sess-1001"), domain.ErrInvalidRequest},
		{"missing session", createRequest("sess-9999", "R1N1"), domain.ErrInvalidRequest},
		{"session cancelled", createRequest("sess-2000", "R1N1"), domain.ErrSessionUnavailable},
		{"not enough seats", createRequest("sess-3000", "R1N1", "R1N2"), domain.ErrSessionUnavailable},
		{"seat taken", createRequest("sess-1001", "R4N5"), domain.ErrSeatTaken},
		{"seat listed twice", createRequest("sess-1001", "R2N2", "R2N2"), domain.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newBookingService(t, sessions)

			_, err := svc.Create(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBookingService_ConcurrentCreateSameSeat(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*domain.Session{"sess-1001": scheduledSession("sess-1001", 160)}}
	svc := newBookingService(t, sessions)

	var created, taken atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), createRequest("sess-1001", "R9N9"))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, domain.ErrSeatTaken):
				taken.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(9), taken.Load())
}

func TestBookingService_CreateMissingSessionIsNotDependencyFailure(t *testing.T) {
	svc := newBookingService(t, &fakeSessions{})

	_, err := svc.Create(context.Background(), createRequest("sess-9999", "R1N1"))

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NotErrorIs(t, err, domain.ErrDependencyUnavailable)
}

func TestBookingService_CreateMovieServiceDown(t *testing.T) {
	down := fmt.Errorf("%w: %w", domain.ErrDependencyUnavailable, domain.ErrNoInstances)
	svc := newBookingService(t, &fakeSessions{err: down})

	_, err := svc.Create(context.Background(), createRequest("sess-1001", "R1N1"))

	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)

	all, _ := svc.List(context.Background(), domain.BookingFilter{})
	assert.Len(t, all, 2, "nothing is stored when movie-service is unreachable")
}

func TestBookingService_Update(t *testing.T) {
	svc := newBookingService(t, &fakeSessions{})
	ctx := context.Background()
	confirmed := string(domain.BookingConfirmed)
	pending := string(domain.BookingPending)
	notes := "aisle please"

	updated, err := svc.Update(ctx, "bk-1002", domain.UpdateBookingRequest{Status: &confirmed, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, updated.Status)
	assert.NotNil(t, updated.ConfirmedAt)
	assert.Nil(t, updated.ExpiresAt)
	assert.Equal(t, "aisle please", updated.Notes)

	_, err = svc.Update(ctx, "bk-1002", domain.UpdateBookingRequest{Status: &pending})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	bogus := "EXPIRED"
	_, err = svc.Update(ctx, "bk-1002", domain.UpdateBookingRequest{Status: &bogus})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Update(ctx, "bk-9999", domain.UpdateBookingRequest{Notes: &notes})
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestBookingService_Cancel(t *testing.T) {
	svc := newBookingService(t, &fakeSessions{})
	ctx := context.Background()

	cancelled, err := svc.Cancel(ctx, "bk-1002")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, "bk-1002")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	confirmed := string(domain.BookingConfirmed)
	_, err = svc.Update(ctx, "bk-1002", domain.UpdateBookingRequest{Status: &confirmed})
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "cancelled is terminal")
}

func TestBookingService_ListAndDelete(t *testing.T) {
	svc := newBookingService(t, &fakeSessions{})
	ctx := context.Background()

	mine, err := svc.List(ctx, domain.BookingFilter{UserID: "user-9001", Status: domain.BookingConfirmed})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "bk-1001", mine[0].ID)

	require.NoError(t, svc.Delete(ctx, "bk-1001"))
	_, err = svc.Get(ctx, "bk-1001")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestBookingService_DependencyHealth(t *testing.T) {
	sessions := &fakeSessions{}
	svc := newBookingService(t, sessions)

	status := svc.DependencyHealth(context.Background())

	assert.Equal(t, "movie-service", status.Service)
	assert.True(t, status.Healthy)
	assert.Equal(t, int32(0), sessions.calls.Load(), "health comes from discovery, not a session fetch")
}
