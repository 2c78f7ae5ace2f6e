package payment

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

type Store interface {
	Insert(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByBooking(ctx context.Context, bookingID string) (*Payment, error)
	MarkCompleted(ctx context.Context, p *Payment) error
	MarkFailed(ctx context.Context, p *Payment) error
	MarkRefunded(ctx context.Context, p *Payment) error
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header) error
}

// Service consumes InitiatePayment/CancelPayment commands. Whatever the
// gateway does - rejects, times out, trips the breaker - the payment row
// ends in a terminal local state and exactly one outcome event goes out;
// gateway trouble never escapes the handler.
type Service struct {
	Repo        Store
	Gateway     Gateway
	Redis       *redis.Client
	Bus         Publisher
	ServiceName string
	Metrics     *metrics.Payment // optional
}

func (s *Service) HandleCommand(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	seen, err := redisx.Seen(ctx, s.Redis, "payment", env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	switch env.EventType {
	case events.TypeInitiatePayment:
		err = s.handleInitiate(ctx, env)
	case events.TypeCancelPayment:
		err = s.handleCancel(ctx, env)
	case events.TypeBookingCancelled:
		err = s.handleBookingCancelled(ctx, env)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return redisx.MarkSeen(ctx, s.Redis, "payment", env.EventID)
}

func (s *Service) handleInitiate(ctx context.Context, env events.Envelope) error {
	p, err := kafkax.UnwrapPayload[events.InitiatePaymentPayload](env.Payload)
	if err != nil {
		return err
	}

	// One payment per booking: a redelivered command after the dedup key
	// expired must not charge twice.
	if existing, err := s.Repo.GetByBooking(ctx, p.BookingID); err == nil {
		log.Printf("payment for booking %s already exists (%s), skipping", p.BookingID, existing.Status)
		return nil
	} else if domain.Code(err) != "Payment.NotFound" {
		return err
	}

	pay, err := NewPayment(p.BookingID, p.UserID, p.AmountCents, p.Currency, "")
	if err != nil {
		// Invalid command; reject it rather than redeliver forever.
		return s.publishFailed(env.TraceID, "", p.BookingID, err.Error())
	}

	// Persist Pending first so a record exists even if the gateway call
	// blows up below.
	if err := s.Repo.Insert(ctx, pay); err != nil {
		return err
	}

	resp, gerr := s.Gateway.ProcessPayment(ctx, pay.ID, pay.AmountCents, pay.Currency, pay.Method)
	switch {
	case gerr != nil:
		return s.fail(ctx, pay, env.TraceID, gerr.Error())
	case resp.Success && resp.TransactionID != "":
		return s.complete(ctx, pay, env.TraceID, resp.TransactionID)
	default:
		msg := resp.Message
		if msg == "" {
			msg = "payment rejected by gateway"
		}
		return s.fail(ctx, pay, env.TraceID, msg)
	}
}

func (s *Service) handleCancel(ctx context.Context, env events.Envelope) error {
	p, err := kafkax.UnwrapPayload[events.CancelPaymentPayload](env.Payload)
	if err != nil {
		return err
	}
	return s.cancelForBooking(ctx, env.TraceID, p.BookingID, p.Reason)
}

// handleBookingCancelled refunds a completed payment when the user cancels
// a booking after confirmation.
func (s *Service) handleBookingCancelled(ctx context.Context, env events.Envelope) error {
	p, err := kafkax.UnwrapPayload[events.BookingCancelledPayload](env.Payload)
	if err != nil {
		return err
	}
	return s.cancelForBooking(ctx, env.TraceID, p.BookingID, p.Reason)
}

func (s *Service) cancelForBooking(ctx context.Context, traceID, bookingID, reason string) error {
	pay, err := s.Repo.GetByBooking(ctx, bookingID)
	if err != nil {
		if domain.Code(err) == "Payment.NotFound" {
			return nil // nothing was charged; compensation is a no-op
		}
		return err
	}

	if reason == "" {
		reason = "booking saga cancelled"
	}

	switch pay.Status {
	case StatusPending:
		return s.fail(ctx, pay, traceID, reason)
	case StatusCompleted:
		if err := s.Refund(ctx, pay.ID, reason); err != nil {
			if domain.Code(err) != "" {
				log.Printf("cancel payment %s: %v", pay.ID, err)
				return nil // business rule says no; don't redeliver
			}
			return err
		}
		return nil
	default:
		return nil // already terminal
	}
}

// Refund runs the 30-day-window business check first, then the gateway
// call, and persists only after the gateway accepted. A gateway failure
// leaves the stored row untouched.
func (s *Service) Refund(ctx context.Context, paymentID, reason string) error {
	pay, err := s.Repo.Get(ctx, paymentID)
	if err != nil {
		return err
	}

	if err := pay.Refund(reason); err != nil {
		return err // fail fast, no gateway call
	}

	resp, gerr := s.Gateway.ProcessRefund(ctx, pay.ExternalTxID, pay.AmountCents, pay.Currency)
	if gerr != nil {
		return gerr
	}
	if !resp.Success {
		return domain.E("Payment.RefundFailed", resp.Message)
	}

	if err := s.Repo.MarkRefunded(ctx, pay); err != nil {
		return err
	}
	if s.Metrics != nil {
		s.Metrics.Processed.WithLabelValues("refunded").Inc()
	}

	ev := events.New(events.TypePaymentRefunded, s.ServiceName, "", pay.BookingID,
		events.PaymentRefundedPayload{
			PaymentID:   pay.ID,
			BookingID:   pay.BookingID,
			AmountCents: pay.AmountCents,
			Reason:      reason,
		})
	return s.publish(events.TopicPaymentRefunded, ev)
}

func (s *Service) complete(ctx context.Context, pay *Payment, traceID, externalTxID string) error {
	if err := pay.Complete(externalTxID); err != nil {
		return err
	}
	if err := s.Repo.MarkCompleted(ctx, pay); err != nil {
		return err
	}
	if s.Metrics != nil {
		s.Metrics.Processed.WithLabelValues("completed").Inc()
	}
	log.Printf("payment %s completed, external tx %s", pay.ID, externalTxID)

	ev := events.New(events.TypePaymentCompleted, s.ServiceName, traceID, pay.BookingID,
		events.PaymentCompletedPayload{
			PaymentID:    pay.ID,
			BookingID:    pay.BookingID,
			ExternalTxID: externalTxID,
		})
	return s.publish(events.TopicPaymentCompleted, ev)
}

func (s *Service) fail(ctx context.Context, pay *Payment, traceID, reason string) error {
	if err := pay.Fail(reason); err != nil {
		return err
	}
	if err := s.Repo.MarkFailed(ctx, pay); err != nil {
		return err
	}
	if s.Metrics != nil {
		s.Metrics.Processed.WithLabelValues("failed").Inc()
	}
	log.Printf("payment %s failed: %s", pay.ID, reason)
	return s.publishFailed(traceID, pay.ID, pay.BookingID, reason)
}

func (s *Service) publishFailed(traceID, paymentID, bookingID, reason string) error {
	ev := events.New(events.TypePaymentFailed, s.ServiceName, traceID, bookingID,
		events.PaymentFailedPayload{
			PaymentID: paymentID,
			BookingID: bookingID,
			Reason:    reason,
		})
	return s.publish(events.TopicPaymentFailed, ev)
}

func (s *Service) publish(topic string, env events.Envelope) error {
	return s.Bus.Publish(topic, events.PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
