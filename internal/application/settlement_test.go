package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settledEvent struct {
	job     domain.SettlementJob
	payment *domain.Payment
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// bookingConfirmer confirms bookings straight through the booking service.
type bookingConfirmer struct {
	bookings *BookingService
	calls    atomic.Int32
	err      error
}

func (c *bookingConfirmer) Confirm(ctx context.Context, job domain.ConfirmationJob) error {
	c.calls.Add(1)
	if c.err != nil {
		return c.err
	}
	status := string(job.DesiredState)
	_, err := c.bookings.Update(ctx, job.TargetEntityID, domain.UpdateBookingRequest{Status: &status})
	return err
}

type capturerFunc func(ctx context.Context, p *domain.Payment) error

func (f capturerFunc) Capture(ctx context.Context, p *domain.Payment) error {
	return f(ctx, p)
}

type settlementFixture struct {
	payments    *memory.PaymentRepository
	bookings    *BookingService
	confirmer   *bookingConfirmer
	coordinator *SettlementCoordinator
	settled     chan settledEvent
	logs        *syncBuffer
}

func newSettlementFixture(t *testing.T, capturer Capturer, confirmErr error) *settlementFixture {
	t.Helper()

	bookingRepo := memory.NewBookingRepository(memory.NewSequenceGenerator("bk", memory.BookingSequenceStart))
	require.NoError(t, memory.SeedBookings(context.Background(), bookingRepo))

	f := &settlementFixture{
		payments: memory.NewPaymentRepository(memory.NewSequenceGenerator("pay", memory.PaymentSequenceStart)),
		bookings: NewBookingService(bookingRepo, &fakeSessions{}),
		settled:  make(chan settledEvent, 8),
		logs:     &syncBuffer{},
	}
	f.confirmer = &bookingConfirmer{bookings: f.bookings, err: confirmErr}

	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.coordinator = NewSettlementCoordinator(
		SettlementConfig{Workers: 2, QueueSize: 4},
		f.payments, capturer, f.confirmer,
		WithSettlementLogger(logger),
		OnSettled(func(job domain.SettlementJob, p *domain.Payment) {
			f.settled <- settledEvent{job: job, payment: p}
		}),
	)
	f.coordinator.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.coordinator.Shutdown(ctx)
	})
	return f
}

func (f *settlementFixture) pendingPayment(t *testing.T, bookingID string) *domain.Payment {
	t.Helper()
	p := &domain.Payment{
		BookingID: bookingID,
		Amount:    domain.Price{Value: 8, Currency: "EUR"},
		Method:    domain.MethodCard,
		Status:    domain.PaymentPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.payments.Save(context.Background(), p))
	return p
}

func (f *settlementFixture) wait(t *testing.T) settledEvent {
	t.Helper()
	select {
	case ev := <-f.settled:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("settlement did not finish")
		return settledEvent{}
	}
}

func TestSettlement_SuccessConfirmsBooking(t *testing.T) {
	f := newSettlementFixture(t, NewSimulatedCapturer(0, 1, nil), nil)
	p := f.pendingPayment(t, "bk-1002")

	_, err := f.coordinator.Submit(p)
	require.NoError(t, err)

	ev := f.wait(t)
	assert.Equal(t, domain.SettlementSucceeded, ev.job.State)
	require.NotNil(t, ev.payment)
	assert.Equal(t, domain.PaymentCompleted, ev.payment.Status)
	assert.Regexp(t, `^txn-[0-9a-f]{8}$`, ev.payment.TransactionID)
	assert.NotNil(t, ev.payment.ProcessedAt)
	assert.Equal(t, int32(1), f.confirmer.calls.Load())

	booking, err := f.bookings.Get(context.Background(), "bk-1002")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, booking.Status)
	assert.NotNil(t, booking.ConfirmedAt)
	assert.Nil(t, booking.ExpiresAt)
}

func TestSettlement_CaptureFailureLeavesBookingPending(t *testing.T) {
	f := newSettlementFixture(t, NewSimulatedCapturer(0, 0, nil), nil)
	p := f.pendingPayment(t, "bk-1002")

	_, err := f.coordinator.Submit(p)
	require.NoError(t, err)

	ev := f.wait(t)
	assert.Equal(t, domain.SettlementFailed, ev.job.State)

	stored, err := f.payments.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, stored.Status)
	assert.Empty(t, stored.TransactionID)
	assert.Equal(t, int32(0), f.confirmer.calls.Load())

	booking, err := f.bookings.Get(context.Background(), "bk-1002")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, booking.Status)
}

func TestSettlement_ConfirmationFailureKeepsPaymentCompleted(t *testing.T) {
	f := newSettlementFixture(t, NewSimulatedCapturer(0, 1, nil), domain.ErrDependencyUnavailable)
	p := f.pendingPayment(t, "bk-1002")

	_, err := f.coordinator.Submit(p)
	require.NoError(t, err)

	ev := f.wait(t)
	assert.Equal(t, domain.SettlementSucceeded, ev.job.State)
	assert.Equal(t, domain.PaymentCompleted, ev.payment.Status)
	assert.Equal(t, int32(1), f.confirmer.calls.Load(), "confirmation is never retried")

	logs := f.logs.String()
	assert.Equal(t, 1, strings.Count(logs, "booking confirmation failed"))
	assert.Contains(t, logs, "level=WARN")

	booking, _ := f.bookings.Get(context.Background(), "bk-1002")
	assert.Equal(t, domain.BookingPending, booking.Status)
}

func TestSettlement_PanicIsRecovered(t *testing.T) {
	var calls atomic.Int32
	capturer := capturerFunc(func(ctx context.Context, p *domain.Payment) error {
		if calls.Add(1) == 1 {
			panic("provider exploded")
		}
		return nil
	})
	f := newSettlementFixture(t, capturer, nil)

	first := f.pendingPayment(t, "bk-1002")
	_, err := f.coordinator.Submit(first)
	require.NoError(t, err)
	ev := f.wait(t)
	assert.Equal(t, domain.SettlementFailed, ev.job.State)
	assert.Contains(t, f.logs.String(), "panic in settlement job")

	stored, _ := f.payments.FindByID(context.Background(), first.ID)
	assert.Equal(t, domain.PaymentPending, stored.Status)

	second := f.pendingPayment(t, "bk-1002")
	_, err = f.coordinator.Submit(second)
	require.NoError(t, err)
	ev = f.wait(t)
	assert.Equal(t, domain.SettlementSucceeded, ev.job.State, "workers survive a panic")
}

func TestSettlement_QueueFull(t *testing.T) {
	payments := memory.NewPaymentRepository(memory.NewSequenceGenerator("pay", 1))
	c := NewSettlementCoordinator(SettlementConfig{Workers: 1, QueueSize: 1}, payments,
		NewSimulatedCapturer(0, 1, nil), &bookingConfirmer{err: errors.New("unused")})

	// not started, so the first job occupies the only queue slot
	p := &domain.Payment{ID: "pay-1", BookingID: "bk-1", Status: domain.PaymentPending}
	_, err := c.Submit(p)
	require.NoError(t, err)

	_, err = c.Submit(p)
	assert.ErrorIs(t, err, ErrSettlementQueueFull)

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestSettlement_ShutdownDrainsQueue(t *testing.T) {
	f := newSettlementFixture(t, NewSimulatedCapturer(10*time.Millisecond, 1, nil), nil)

	var ids []string
	for i := 0; i < 3; i++ {
		p := f.pendingPayment(t, "bk-1002")
		ids = append(ids, p.ID)
		_, err := f.coordinator.Submit(p)
		require.NoError(t, err)
	}

	require.NoError(t, f.coordinator.Shutdown(context.Background()))

	for _, id := range ids {
		stored, err := f.payments.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCompleted, stored.Status)
	}

	_, err := f.coordinator.Submit(&domain.Payment{ID: "late"})
	assert.ErrorIs(t, err, ErrSettlementClosed)
}

func TestSettlement_ShutdownDeadlineCancelsCapture(t *testing.T) {
	f := newSettlementFixture(t, NewSimulatedCapturer(time.Hour, 1, nil), nil)
	p := f.pendingPayment(t, "bk-1002")
	_, err := f.coordinator.Submit(p)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = f.coordinator.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ev := f.wait(t)
	assert.Equal(t, domain.SettlementFailed, ev.job.State)

	stored, err := f.payments.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, stored.Status, "an interrupted capture is not a declined one")
}

func TestSimulatedCapturer_SuccessRate(t *testing.T) {
	c := NewSimulatedCapturer(0, 0.95, rand.New(rand.NewPCG(1, 2)))

	failures := 0
	for i := 0; i < 1000; i++ {
		if err := c.Capture(context.Background(), &domain.Payment{ID: "pay-1"}); err != nil {
			assert.ErrorIs(t, err, ErrCaptureDeclined)
			failures++
		}
	}

	assert.Greater(t, failures, 20)
	assert.Less(t, failures, 90)
}

func TestSimulatedCapturer_HonoursContext(t *testing.T) {
	c := NewSimulatedCapturer(time.Hour, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Capture(ctx, &domain.Payment{ID: "pay-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
