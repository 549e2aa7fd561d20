package domain

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return st, nil
	}
	return "", Invalid("status", "invalid payment status %q, allowed values: PENDING, COMPLETED, FAILED, REFUNDED", s)
}

// Active reports whether a payment in s blocks another payment for the same
// booking.
func (s PaymentStatus) Active() bool {
	return s == PaymentPending || s == PaymentCompleted
}

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "CARD"
	MethodPayPal PaymentMethod = "PAYPAL"
	MethodCash   PaymentMethod = "CASH"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodCard, MethodPayPal, MethodCash:
		return m, nil
	}
	return "", Invalid("method", "invalid payment method %q, allowed values: CARD, PAYPAL, CASH", s)
}

type Payment struct {
	ID            string        `json:"id"`
	BookingID     string        `json:"bookingId"`
	Amount        Price         `json:"amount"`
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	ProcessedAt   *time.Time    `json:"processedAt,omitempty"`
}

type CreatePaymentRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
	Amount    *Price `json:"amount" binding:"required"`
	Method    string `json:"method" binding:"required"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type RefundResponse struct {
	Message    string    `json:"message"`
	PaymentID  string    `json:"paymentId"`
	BookingID  string    `json:"bookingId"`
	Amount     Price     `json:"amount"`
	RefundedAt time.Time `json:"refundedAt"`
	Reason     string    `json:"reason"`
}
