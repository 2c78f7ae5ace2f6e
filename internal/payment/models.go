package payment

import (
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// RefundWindow is how long after completion a payment stays refundable.
const RefundWindow = 30 * 24 * time.Hour

type Payment struct {
	ID            string
	BookingID     string
	UserID        string
	AmountCents   int64
	Currency      string
	Method        string
	Status        Status
	ExternalTxID  string
	FailureReason string
	CreatedAt     time.Time
	CompletedAt   *time.Time
	RefundedAt    *time.Time
	Version       int64
}

func NewPayment(bookingID, userID string, amountCents int64, currency, method string) (*Payment, error) {
	if bookingID == "" {
		return nil, domain.E("Payment.InvalidBooking", "booking id cannot be empty")
	}
	if userID == "" {
		return nil, domain.E("Payment.InvalidUser", "user id cannot be empty")
	}
	if amountCents < 0 {
		return nil, domain.E("Payment.InvalidAmount", "amount cannot be negative")
	}
	if currency == "" {
		currency = "USD"
	}
	if method == "" {
		method = "CreditCard"
	}
	return &Payment{
		ID:          uuid.NewString(),
		BookingID:   bookingID,
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    currency,
		Method:      method,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (p *Payment) Complete(externalTxID string) error {
	if p.Status != StatusPending {
		return domain.E("Payment.InvalidStatus", "only pending payments can be completed")
	}
	if externalTxID == "" {
		return domain.E("Payment.MissingTransactionID", "external transaction id is required")
	}
	now := time.Now().UTC()
	p.Status = StatusCompleted
	p.ExternalTxID = externalTxID
	p.CompletedAt = &now
	return nil
}

func (p *Payment) Fail(reason string) error {
	if p.Status != StatusPending {
		return domain.E("Payment.InvalidStatus", "only pending payments can be marked as failed")
	}
	p.Status = StatusFailed
	p.FailureReason = reason
	return nil
}

// Refund applies the local business rule only; the caller must run the
// gateway refund before persisting the mutated state.
func (p *Payment) Refund(reason string) error {
	if p.Status != StatusCompleted {
		return domain.E("Payment.CannotRefund", "only completed payments can be refunded")
	}
	if p.CompletedAt != nil && time.Since(*p.CompletedAt) > RefundWindow {
		return domain.E("Payment.RefundWindowClosed", "refund window (30 days) has expired")
	}
	now := time.Now().UTC()
	p.Status = StatusRefunded
	p.RefundedAt = &now
	p.FailureReason = reason
	return nil
}

func (p *Payment) Refundable() bool {
	return p.Status == StatusCompleted &&
		p.CompletedAt != nil &&
		time.Since(*p.CompletedAt) <= RefundWindow
}
