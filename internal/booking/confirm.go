package booking

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	"github.com/ariefcatur/go-booking-saga.git/internal/metrics"
	"github.com/ariefcatur/go-booking-saga.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	legResource = "resource"
	legPayment  = "payment"
)

// Confirmer closes the saga from the outcome side. It tracks, per booking,
// which of the two acks (resource reserved, payment completed) arrived in
// the saga:{bookingID} hash; when both are in, the booking is confirmed.
// A rejection or payment failure fails the booking and sends the undo
// command for the other leg. Everything tolerates duplicate delivery.
type Confirmer struct {
	Bookings    Store
	Redis       *redis.Client
	Bus         Publisher
	ServiceName string
	Metrics     *metrics.Saga // optional
}

func (c *Confirmer) HandleOutcome(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	seen, err := redisx.Seen(ctx, c.Redis, "booking", env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	switch env.EventType {
	case events.TypeResourceReserved:
		p, perr := kafkax.UnwrapPayload[events.ResourceReservedPayload](env.Payload)
		if perr != nil {
			return perr
		}
		err = c.ack(ctx, env.TraceID, p.BookingID, legResource)
	case events.TypePaymentCompleted:
		p, perr := kafkax.UnwrapPayload[events.PaymentCompletedPayload](env.Payload)
		if perr != nil {
			return perr
		}
		err = c.ack(ctx, env.TraceID, p.BookingID, legPayment)
	case events.TypeResourceRejected:
		p, perr := kafkax.UnwrapPayload[events.ResourceRejectedPayload](env.Payload)
		if perr != nil {
			return perr
		}
		err = c.abort(ctx, env.TraceID, p.BookingID, p.Reason, legResource)
	case events.TypePaymentFailed:
		p, perr := kafkax.UnwrapPayload[events.PaymentFailedPayload](env.Payload)
		if perr != nil {
			return perr
		}
		err = c.abort(ctx, env.TraceID, p.BookingID, p.Reason, legPayment)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return redisx.MarkSeen(ctx, c.Redis, "booking", env.EventID)
}

func (c *Confirmer) ack(ctx context.Context, traceID, bookingID, leg string) error {
	key := redisx.SagaJoinKey(bookingID)
	if err := c.Redis.HSet(ctx, key, leg, 1).Err(); err != nil {
		return err
	}
	_ = c.Redis.Expire(ctx, key, redisx.TTLSagaJoin).Err()

	acks, err := c.Redis.HGetAll(ctx, key).Result()
	if err != nil {
		return err
	}
	if acks[legResource] == "" || acks[legPayment] == "" {
		return nil // still waiting for the other leg
	}

	b, err := c.Bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := b.Confirm(); err != nil {
		// Second pass over an already-confirmed booking; done.
		log.Printf("confirm booking %s: %v", bookingID, err)
		return nil
	}
	if err := c.Bookings.Update(ctx, b); err != nil {
		return err
	}
	if c.Metrics != nil {
		c.Metrics.Confirmed.Inc()
	}
	c.cacheStatus(ctx, b)
	log.Printf("booking %s confirmed", bookingID)

	ev := events.New(events.TypeBookingConfirmed, c.ServiceName, traceID, b.ID,
		events.BookingConfirmedPayload{BookingID: b.ID, ResourceID: b.ResourceID, UserID: b.UserID})
	return c.publish(events.TopicBookingConfirmed, ev)
}

// abort fails the booking and compensates the leg that may have already
// succeeded. The failed leg cleaned up after itself.
func (c *Confirmer) abort(ctx context.Context, traceID, bookingID, reason, failedLeg string) error {
	b, err := c.Bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := b.MarkFailed(); err != nil {
		if domain.Code(err) != "Booking.InvalidStatus" {
			return err
		}
		log.Printf("abort booking %s: already %s", bookingID, b.Status)
	} else {
		if err := c.Bookings.Update(ctx, b); err != nil {
			return err
		}
		c.cacheStatus(ctx, b)
	}
	log.Printf("booking %s failed (%s leg): %s", bookingID, failedLeg, reason)

	var ev events.Envelope
	var topic string
	switch failedLeg {
	case legResource:
		topic = events.TopicCancelPayment
		ev = events.New(events.TypeCancelPayment, c.ServiceName, traceID, b.ID,
			events.CancelPaymentPayload{BookingID: b.ID, Reason: reason})
	case legPayment:
		topic = events.TopicReleaseResource
		ev = events.New(events.TypeReleaseResource, c.ServiceName, traceID, b.ID,
			events.ReleaseResourcePayload{ResourceID: b.ResourceID, StartTime: b.Period.Start, EndTime: b.Period.End})
	}
	if err := c.publish(topic, ev); err != nil {
		return err
	}

	_ = c.Redis.Del(ctx, redisx.SagaJoinKey(bookingID)).Err()
	return nil
}

func (c *Confirmer) cacheStatus(ctx context.Context, b *Booking) {
	body, _ := json.Marshal(map[string]any{"status": b.Status})
	if err := c.Redis.Set(ctx, redisx.BookingStatusKey(b.ID), body, redisx.TTLStatusCache).Err(); err != nil {
		log.Printf("cache status booking %s: %v", b.ID, err)
	}
}

func (c *Confirmer) publish(topic string, env events.Envelope) error {
	return c.Bus.Publish(topic, events.PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
