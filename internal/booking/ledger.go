package booking

import (
	"context"

	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

// Ledger is the synchronous surface over the booking lifecycle: cancel and
// complete, outside the saga. Cancellation announces itself on the bus so
// the payment service can refund.
type Ledger struct {
	Bookings    Store
	Bus         Publisher
	ServiceName string
}

func (l *Ledger) Get(ctx context.Context, id string) (*Booking, error) {
	return l.Bookings.Get(ctx, id)
}

func (l *Ledger) Cancel(ctx context.Context, id, reason string) error {
	b, err := l.Bookings.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := b.Cancel(reason); err != nil {
		return err
	}
	if err := l.Bookings.Update(ctx, b); err != nil {
		return err
	}

	// Free the slot ourselves; the cancelled event carries no period.
	release := events.New(events.TypeReleaseResource, l.ServiceName, "", b.ID,
		events.ReleaseResourcePayload{ResourceID: b.ResourceID, StartTime: b.Period.Start, EndTime: b.Period.End})
	if err := l.publish(events.TopicReleaseResource, release); err != nil {
		return err
	}

	ev := events.New(events.TypeBookingCancelled, l.ServiceName, "", b.ID,
		events.BookingCancelledPayload{BookingID: b.ID, ResourceID: b.ResourceID, Reason: reason})
	return l.publish(events.TopicBookingCancelled, ev)
}

func (l *Ledger) Complete(ctx context.Context, id string) error {
	b, err := l.Bookings.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := b.Complete(); err != nil {
		return err
	}
	return l.Bookings.Update(ctx, b)
}

func (l *Ledger) publish(topic string, env events.Envelope) error {
	return l.Bus.Publish(topic, events.PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
