package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/apascualco/cinemesh/internal/domain"
)

const (
	MovieService   = "movie-service"
	BookingService = "booking-service"
)

// MovieClient is the booking service's view of movie-service.
type MovieClient struct {
	client *Client
}

func NewMovieClient(client *Client) *MovieClient {
	return &MovieClient{client: client}
}

func (m *MovieClient) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	out := m.client.Call(ctx, MovieService, Request{
		Method: http.MethodGet,
		Path:   "/api/movies/sessions/" + url.PathEscape(sessionID),
		Schema: domain.SchemaMovieSession,
	})
	if err := out.Err(domain.ErrSessionNotFound); err != nil {
		return nil, err
	}

	var session domain.Session
	if err := out.Decode(&session); err != nil {
		return nil, fmt.Errorf("%w: %s sent an unreadable session: %w", domain.ErrDependencyUnavailable, MovieService, err)
	}
	return &session, nil
}

func (m *MovieClient) Healthy(ctx context.Context) bool {
	return m.client.Healthy(ctx, MovieService)
}

func (m *MovieClient) Info(ctx context.Context) string {
	return m.client.Info(ctx, MovieService)
}

// BookingClient is the payment service's view of booking-service.
type BookingClient struct {
	client *Client
}

func NewBookingClient(client *Client) *BookingClient {
	return &BookingClient{client: client}
}

func (b *BookingClient) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	out := b.client.Call(ctx, BookingService, Request{
		Method: http.MethodGet,
		Path:   "/api/bookings/" + url.PathEscape(bookingID),
		Schema: domain.SchemaBooking,
	})
	if err := out.Err(domain.ErrBookingNotFound); err != nil {
		return nil, err
	}

	var booking domain.Booking
	if err := out.Decode(&booking); err != nil {
		return nil, fmt.Errorf("%w: %s sent an unreadable booking: %w", domain.ErrDependencyUnavailable, BookingService, err)
	}
	return &booking, nil
}

// ConfirmBooking moves a booking to CONFIRMED. The updated booking in the
// reply is held to the Booking contract like any other read.
func (b *BookingClient) ConfirmBooking(ctx context.Context, bookingID string) error {
	out := b.client.Call(ctx, BookingService, Request{
		Method: http.MethodPut,
		Path:   "/api/bookings/" + url.PathEscape(bookingID),
		Body:   map[string]string{"status": string(domain.BookingConfirmed)},
		Schema: domain.SchemaBooking,
	})
	return out.Err(domain.ErrBookingNotFound)
}

// Confirm carries out a confirmation job against the booking service.
func (b *BookingClient) Confirm(ctx context.Context, job domain.ConfirmationJob) error {
	return b.ConfirmBooking(ctx, job.TargetEntityID)
}

func (b *BookingClient) Healthy(ctx context.Context) bool {
	return b.client.Healthy(ctx, BookingService)
}

func (b *BookingClient) Info(ctx context.Context) string {
	return b.client.Info(ctx, BookingService)
}
