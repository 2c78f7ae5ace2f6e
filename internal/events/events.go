package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// Saga commands.
	TypeReserveResource = "ReserveResource"
	TypeInitiatePayment = "InitiatePayment"
	TypeReleaseResource = "ReleaseResource"
	TypeCancelPayment   = "CancelPayment"

	// Outcomes.
	TypeResourceReserved = "ResourceReserved"
	TypeResourceRejected = "ResourceRejected"
	TypePaymentCompleted = "PaymentCompleted"
	TypePaymentFailed    = "PaymentFailed"
	TypePaymentRefunded  = "PaymentRefunded"
	TypeBookingConfirmed = "BookingConfirmed"
	TypeBookingCancelled = "BookingCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "booking-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // booking_id
	Payload       json.RawMessage `json:"payload"`
}

// New wraps a payload in a v1 envelope. Panics on a marshal failure, which
// can only be a programming error in the payload type.
func New(eventType, producer, traceID, correlationID string, payload any) Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}
}

// ---- Payload per event type ----

type ReserveResourcePayload struct {
	BookingID  string    `json:"booking_id"`
	ResourceID string    `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type InitiatePaymentPayload struct {
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type ReleaseResourcePayload struct {
	ResourceID string    `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type CancelPaymentPayload struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}

type ResourceReservedPayload struct {
	BookingID     string    `json:"booking_id"`
	ResourceID    string    `json:"resource_id"`
	ReservationID string    `json:"reservation_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type ResourceRejectedPayload struct {
	BookingID  string `json:"booking_id"`
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"` // e.g. Resource.SlotConflict
}

type PaymentCompletedPayload struct {
	PaymentID    string `json:"payment_id"`
	BookingID    string `json:"booking_id"`
	ExternalTxID string `json:"external_tx_id"`
}

type PaymentFailedPayload struct {
	PaymentID string `json:"payment_id"`
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type PaymentRefundedPayload struct {
	PaymentID   string `json:"payment_id"`
	BookingID   string `json:"booking_id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason,omitempty"`
}

type BookingConfirmedPayload struct {
	BookingID  string `json:"booking_id"`
	ResourceID string `json:"resource_id"`
	UserID     string `json:"user_id"`
}

type BookingCancelledPayload struct {
	BookingID  string `json:"booking_id"`
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"`
}
