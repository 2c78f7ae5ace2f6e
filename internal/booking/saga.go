package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	"github.com/ariefcatur/go-booking-saga.git/internal/metrics"
	kafkago "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header) error
}

// Saga drives booking creation: persist a Pending booking, then ask the
// inventory and payment services to do their part via events. It returns
// as soon as both requests are out; confirmation arrives later through the
// Confirmer. A synchronous failure after the insert triggers local
// compensation. There is no persisted step log: a crash between the two
// publishes leaves an inconsistency for operators to reconcile.
type Saga struct {
	Bookings    Store
	Bus         Publisher
	ServiceName string
	Metrics     *metrics.Saga // optional
}

type CreateBooking struct {
	ResourceID        string
	UserID            string
	Start             time.Time
	End               time.Time
	PricePerHourCents int64
	Currency          string
	TraceID           string
}

func (s *Saga) Execute(ctx context.Context, in CreateBooking) (string, error) {
	// Step 1: validate, price, persist Pending. Failing here aborts with
	// nothing to compensate.
	b, err := NewBooking(in.ResourceID, in.UserID, in.Start, in.End, in.PricePerHourCents, in.Currency)
	if err != nil {
		return "", err
	}
	if err := s.Bookings.Insert(ctx, b); err != nil {
		return "", err
	}
	if s.Metrics != nil {
		s.Metrics.Started.Inc()
	}
	log.Printf("saga: booking %s created pending, user=%s resource=%s", b.ID, b.UserID, b.ResourceID)

	// Step 2: ask inventory to reserve the slot.
	reserve := events.New(events.TypeReserveResource, s.ServiceName, in.TraceID, b.ID,
		events.ReserveResourcePayload{
			BookingID:  b.ID,
			ResourceID: b.ResourceID,
			StartTime:  b.Period.Start,
			EndTime:    b.Period.End,
		})
	if err := s.publish(events.TopicReserveResource, reserve); err != nil {
		s.compensate(ctx, b, in.TraceID)
		return "", fmt.Errorf("publish reserve resource: %w", err)
	}

	// Step 3: ask payment to charge.
	pay := events.New(events.TypeInitiatePayment, s.ServiceName, in.TraceID, b.ID,
		events.InitiatePaymentPayload{
			BookingID:   b.ID,
			UserID:      b.UserID,
			AmountCents: b.TotalCents,
			Currency:    b.Currency,
		})
	if err := s.publish(events.TopicInitiatePayment, pay); err != nil {
		s.compensate(ctx, b, in.TraceID)
		return "", fmt.Errorf("publish initiate payment: %w", err)
	}

	return b.ID, nil
}

// compensate marks the booking failed and sends the undo commands. It runs
// to completion before Execute returns; its own failures are logged only -
// there is no automatic retry, surfacing them is an operator concern.
func (s *Saga) compensate(ctx context.Context, b *Booking, traceID string) {
	log.Printf("saga: compensating booking %s", b.ID)
	if s.Metrics != nil {
		s.Metrics.Compensated.Inc()
	}

	if err := b.MarkFailed(); err != nil {
		log.Printf("saga: mark failed booking %s: %v", b.ID, err)
	} else if err := s.Bookings.Update(ctx, b); err != nil {
		log.Printf("saga: persist failed booking %s: %v", b.ID, err)
	}

	release := events.New(events.TypeReleaseResource, s.ServiceName, traceID, b.ID,
		events.ReleaseResourcePayload{
			ResourceID: b.ResourceID,
			StartTime:  b.Period.Start,
			EndTime:    b.Period.End,
		})
	if err := s.publish(events.TopicReleaseResource, release); err != nil {
		log.Printf("saga: publish release resource for %s: %v", b.ID, err)
	}

	cancel := events.New(events.TypeCancelPayment, s.ServiceName, traceID, b.ID,
		events.CancelPaymentPayload{BookingID: b.ID, Reason: "booking saga failed"})
	if err := s.publish(events.TopicCancelPayment, cancel); err != nil {
		log.Printf("saga: publish cancel payment for %s: %v", b.ID, err)
	}
}

func (s *Saga) publish(topic string, env events.Envelope) error {
	return s.Bus.Publish(topic, events.PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
