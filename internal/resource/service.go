package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	"github.com/ariefcatur/go-booking-saga.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Store interface {
	Get(ctx context.Context, id string) (*Resource, error)
	AddSlot(ctx context.Context, resourceID, reservationID string, s TimeSlot) error
	RemoveSlot(ctx context.Context, resourceID string, start, end time.Time) (bool, error)
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header) error
}

// Service consumes ReserveResource/ReleaseResource commands. Slot mutation
// happens only while holding the resource's distributed lock; when the lock
// is unavailable the message errors out and is redelivered.
type Service struct {
	Repo        Store
	Locks       *redisx.Locker
	Redis       *redis.Client
	Bus         Publisher
	ServiceName string
	LockTTL     time.Duration
}

func (s *Service) HandleCommand(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	seen, err := redisx.Seen(ctx, s.Redis, "inventory", env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	switch env.EventType {
	case events.TypeReserveResource:
		err = s.handleReserve(ctx, env)
	case events.TypeReleaseResource:
		err = s.handleRelease(ctx, env)
	default:
		return nil // not ours
	}
	if err != nil {
		return err
	}
	return redisx.MarkSeen(ctx, s.Redis, "inventory", env.EventID)
}

func (s *Service) handleReserve(ctx context.Context, env events.Envelope) error {
	p, err := kafkax.UnwrapPayload[events.ReserveResourcePayload](env.Payload)
	if err != nil {
		return err
	}

	lock, err := s.Locks.Acquire(ctx, "resource:"+p.ResourceID, s.LockTTL)
	if err != nil {
		return err
	}
	if lock == nil {
		return fmt.Errorf("resource %s: lock held elsewhere", p.ResourceID)
	}
	defer func() {
		if _, err := lock.Release(ctx); err != nil {
			log.Printf("release lock resource=%s: %v", p.ResourceID, err)
		}
	}()

	res, err := s.Repo.Get(ctx, p.ResourceID)
	if err != nil {
		if domain.Code(err) != "" {
			return s.publishRejected(p, env.TraceID, domain.Code(err))
		}
		return err
	}

	reservationID, rerr := res.ReserveSlot(p.StartTime, p.EndTime)
	if rerr != nil {
		log.Printf("reserve rejected booking=%s resource=%s: %v", p.BookingID, p.ResourceID, rerr)
		return s.publishRejected(p, env.TraceID, domain.Code(rerr))
	}

	slot := TimeSlot{Start: p.StartTime, End: p.EndTime, Status: SlotReserved}
	if err := s.Repo.AddSlot(ctx, res.ID, reservationID, slot); err != nil {
		return err
	}

	ev := events.New(events.TypeResourceReserved, s.ServiceName, env.TraceID, p.BookingID,
		events.ResourceReservedPayload{
			BookingID:     p.BookingID,
			ResourceID:    p.ResourceID,
			ReservationID: reservationID,
			StartTime:     p.StartTime,
			EndTime:       p.EndTime,
		})
	return s.publish(events.TopicResourceReserved, ev)
}

func (s *Service) handleRelease(ctx context.Context, env events.Envelope) error {
	p, err := kafkax.UnwrapPayload[events.ReleaseResourcePayload](env.Payload)
	if err != nil {
		return err
	}

	lock, err := s.Locks.Acquire(ctx, "resource:"+p.ResourceID, s.LockTTL)
	if err != nil {
		return err
	}
	if lock == nil {
		return fmt.Errorf("resource %s: lock held elsewhere", p.ResourceID)
	}
	defer func() {
		if _, err := lock.Release(ctx); err != nil {
			log.Printf("release lock resource=%s: %v", p.ResourceID, err)
		}
	}()

	removed, err := s.Repo.RemoveSlot(ctx, p.ResourceID, p.StartTime, p.EndTime)
	if err != nil {
		return err
	}
	if !removed {
		// Compensation is allowed to arrive twice; only note it.
		log.Printf("release: no reserved slot resource=%s start=%s", p.ResourceID, p.StartTime.Format(time.RFC3339))
	}
	return nil
}

func (s *Service) publishRejected(p events.ReserveResourcePayload, traceID, reason string) error {
	ev := events.New(events.TypeResourceRejected, s.ServiceName, traceID, p.BookingID,
		events.ResourceRejectedPayload{
			BookingID:  p.BookingID,
			ResourceID: p.ResourceID,
			Reason:     reason,
		})
	return s.publish(events.TopicResourceRejected, ev)
}

func (s *Service) publish(topic string, env events.Envelope) error {
	return s.Bus.Publish(topic, events.PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
