package domain

import "time"

type SettlementState string

const (
	SettlementScheduled SettlementState = "scheduled"
	SettlementRunning   SettlementState = "running"
	SettlementSucceeded SettlementState = "succeeded"
	SettlementFailed    SettlementState = "failed"
)

// SettlementJob is handed to the settlement coordinator once a PENDING
// payment is durable. It is not persisted: a crash before it runs leaves
// the payment PENDING and the booking unconfirmed.
type SettlementJob struct {
	ID          string          `json:"id"`
	PaymentID   string          `json:"paymentId"`
	BookingID   string          `json:"bookingId"`
	State       SettlementState `json:"state"`
	ScheduledAt time.Time       `json:"scheduledAt"`
}

// ConfirmationJob asks a dependent service to move an entity to DesiredState.
type ConfirmationJob struct {
	TargetService  string        `json:"targetService"`
	TargetEntityID string        `json:"targetEntityId"`
	DesiredState   BookingStatus `json:"desiredState"`
}

// NewBookingConfirmation builds the only confirmation the coordinator ever
// issues: PENDING -> CONFIRMED on the booking service.
func NewBookingConfirmation(service, bookingID string) ConfirmationJob {
	return ConfirmationJob{
		TargetService:  service,
		TargetEntityID: bookingID,
		DesiredState:   BookingConfirmed,
	}
}
