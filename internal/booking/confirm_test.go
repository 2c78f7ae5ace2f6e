package booking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	"github.com/ariefcatur/go-booking-saga.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfirmer(t *testing.T) (*Confirmer, *fakeStore, *fakeBus, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	store := newFakeStore()
	bus := &fakeBus{}
	c := &Confirmer{Bookings: store, Redis: rdb, Bus: bus, ServiceName: "test"}
	return c, store, bus, s
}

func pendingBooking(t *testing.T, store *fakeStore) *Booking {
	t.Helper()
	start := time.Now().UTC().Add(48 * time.Hour)
	b, err := NewBooking("res-1", "user-1", start, start.Add(time.Hour), 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), b))
	return b
}

func outcomeMsg(env events.Envelope) kafkago.Message {
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func reservedEvent(bookingID string) events.Envelope {
	return events.New(events.TypeResourceReserved, "inventory", "trace-1", bookingID,
		events.ResourceReservedPayload{BookingID: bookingID, ResourceID: "res-1", ReservationID: "rsv-1"})
}

func paymentCompletedEvent(bookingID string) events.Envelope {
	return events.New(events.TypePaymentCompleted, "payment", "trace-1", bookingID,
		events.PaymentCompletedPayload{PaymentID: "pay-1", BookingID: bookingID, ExternalTxID: "ext-1"})
}

func TestConfirmerWaitsForBothLegs(t *testing.T) {
	c, store, bus, _ := testConfirmer(t)
	b := pendingBooking(t, store)
	ctx := context.Background()

	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(reservedEvent(b.ID))))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, bus.msgs)
}

func TestConfirmerConfirmsOnBothAcks(t *testing.T) {
	c, store, bus, s := testConfirmer(t)
	b := pendingBooking(t, store)
	ctx := context.Background()

	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(reservedEvent(b.ID))))
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(paymentCompletedEvent(b.ID))))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)

	require.Equal(t, []string{events.TopicBookingConfirmed}, bus.topics())
	assert.True(t, s.Exists(redisx.BookingStatusKey(b.ID)))
}

func TestConfirmerAckOrderIrrelevant(t *testing.T) {
	c, store, bus, _ := testConfirmer(t)
	b := pendingBooking(t, store)
	ctx := context.Background()

	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(paymentCompletedEvent(b.ID))))
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(reservedEvent(b.ID))))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Len(t, bus.msgs, 1)
}

func TestConfirmerDuplicateDelivery(t *testing.T) {
	c, store, bus, _ := testConfirmer(t)
	b := pendingBooking(t, store)
	ctx := context.Background()

	ev := reservedEvent(b.ID)
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(ev)))
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(paymentCompletedEvent(b.ID))))

	// Same event id delivered again: dedup swallows it.
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(ev)))

	// A fresh redelivery of the same fact (new event id) is also harmless:
	// confirm on an already-confirmed booking is a no-op.
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(reservedEvent(b.ID))))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, []string{events.TopicBookingConfirmed}, bus.topics())
}

func TestConfirmerResourceRejected(t *testing.T) {
	c, store, bus, s := testConfirmer(t)
	b := pendingBooking(t, store)
	ctx := context.Background()

	ev := events.New(events.TypeResourceRejected, "inventory", "trace-1", b.ID,
		events.ResourceRejectedPayload{BookingID: b.ID, ResourceID: "res-1", Reason: "Resource.SlotConflict"})
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(ev)))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	// The payment leg may have gone through; undo it.
	require.Equal(t, []string{events.TopicCancelPayment}, bus.topics())
	assert.False(t, s.Exists(redisx.SagaJoinKey(b.ID)))
}

func TestConfirmerPaymentFailed(t *testing.T) {
	c, store, bus, _ := testConfirmer(t)
	b := pendingBooking(t, store)
	ctx := context.Background()

	// Resource leg already acked.
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(reservedEvent(b.ID))))

	ev := events.New(events.TypePaymentFailed, "payment", "trace-1", b.ID,
		events.PaymentFailedPayload{PaymentID: "pay-1", BookingID: b.ID, Reason: "card declined"})
	require.NoError(t, c.HandleOutcome(ctx, outcomeMsg(ev)))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	// The reserved slot must be released.
	require.Equal(t, []string{events.TopicReleaseResource}, bus.topics())
}
