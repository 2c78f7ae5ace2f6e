package booking

import (
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/google/uuid"
)

// pastTolerance lets a booking start "now" without racing the clock.
const pastTolerance = 5 * time.Minute

// cancelCutoff is the shortest notice at which a booking may still be
// cancelled.
const cancelCutoff = 24 * time.Hour

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewPeriod(start, end time.Time) (Period, error) {
	if !start.Before(end) {
		return Period{}, domain.E("Booking.InvalidTimeRange", "start time must be before end time")
	}
	if start.Before(time.Now().UTC().Add(-pastTolerance)) {
		return Period{}, domain.E("Booking.PastTime", "start time cannot be in the past")
	}
	return Period{Start: start, End: end}, nil
}

func (p Period) Minutes() int64 {
	return int64(p.End.Sub(p.Start) / time.Minute)
}

type Booking struct {
	ID           string
	ResourceID   string
	UserID       string
	Period       Period
	TotalCents   int64
	Currency     string
	Status       Status
	CancelReason string
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
	CancelledAt  *time.Time
	Version      int64
}

func NewBooking(resourceID, userID string, start, end time.Time, pricePerHourCents int64, currency string) (*Booking, error) {
	if resourceID == "" {
		return nil, domain.E("Booking.InvalidResource", "resource id cannot be empty")
	}
	if userID == "" {
		return nil, domain.E("Booking.InvalidUser", "user id cannot be empty")
	}
	if pricePerHourCents < 0 {
		return nil, domain.E("Booking.InvalidPrice", "price cannot be negative")
	}
	period, err := NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = "USD"
	}
	return &Booking{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		UserID:     userID,
		Period:     period,
		TotalCents: pricePerHourCents * period.Minutes() / 60,
		Currency:   currency,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (b *Booking) Confirm() error {
	if b.Status != StatusPending {
		return domain.E("Booking.InvalidStatus", "only pending bookings can be confirmed")
	}
	now := time.Now().UTC()
	b.Status = StatusConfirmed
	b.ConfirmedAt = &now
	return nil
}

func (b *Booking) Cancel(reason string) error {
	if b.Status == StatusCancelled {
		return domain.E("Booking.AlreadyCancelled", "booking is already cancelled")
	}
	if b.Status == StatusCompleted {
		return domain.E("Booking.AlreadyCompleted", "cannot cancel a completed booking")
	}
	if b.Period.Start.Before(time.Now().UTC().Add(cancelCutoff)) {
		return domain.E("Booking.TooLateToCancel", "cannot cancel booking less than 24 hours before start time")
	}
	now := time.Now().UTC()
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.CancelledAt = &now
	return nil
}

func (b *Booking) MarkFailed() error {
	if b.Status != StatusPending {
		return domain.E("Booking.InvalidStatus", "only pending bookings can be marked as failed")
	}
	b.Status = StatusFailed
	return nil
}

func (b *Booking) Complete() error {
	if b.Status != StatusConfirmed {
		return domain.E("Booking.InvalidStatus", "only confirmed bookings can be completed")
	}
	if b.Period.End.After(time.Now().UTC()) {
		return domain.E("Booking.NotYetFinished", "cannot complete a booking that hasn't finished yet")
	}
	b.Status = StatusCompleted
	return nil
}
