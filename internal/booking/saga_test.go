package booking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byID      map[string]*Booking
	insertErr error
	updateErr error
	updates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]*Booking{}}
}

func (f *fakeStore) Insert(ctx context.Context, b *Booking) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *b
	f.byID[b.ID] = &cp
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*Booking, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, domain.E("Booking.NotFound", "booking not found: "+id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) Update(ctx context.Context, b *Booking) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	cp := *b
	f.byID[b.ID] = &cp
	return nil
}

type published struct {
	topic string
	key   string
	env   events.Envelope
}

type fakeBus struct {
	msgs      []published
	failTopic string
}

func (f *fakeBus) Publish(topic string, key, value []byte, headers ...kafkago.Header) error {
	if topic == f.failTopic {
		return errors.New("inbox full")
	}
	var env events.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return err
	}
	f.msgs = append(f.msgs, published{topic: topic, key: string(key), env: env})
	return nil
}

func (f *fakeBus) topics() []string {
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.topic)
	}
	return out
}

func testSagaInput() CreateBooking {
	start := time.Now().UTC().Add(48 * time.Hour)
	return CreateBooking{
		ResourceID:        "res-1",
		UserID:            "user-1",
		Start:             start,
		End:               start.Add(2 * time.Hour),
		PricePerHourCents: 5000,
		Currency:          "USD",
		TraceID:           "trace-1",
	}
}

func TestSagaExecuteSuccess(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	saga := &Saga{Bookings: store, Bus: bus, ServiceName: "test"}

	id, err := saga.Execute(context.Background(), testSagaInput())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	b, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, int64(10000), b.TotalCents)

	require.Equal(t, []string{events.TopicReserveResource, events.TopicInitiatePayment}, bus.topics())

	// Both events are keyed and correlated by the booking id.
	for _, m := range bus.msgs {
		assert.Equal(t, id, m.key)
		assert.Equal(t, id, m.env.CorrelationID)
		assert.Equal(t, "trace-1", m.env.TraceID)
	}

	var pay events.InitiatePaymentPayload
	require.NoError(t, json.Unmarshal(bus.msgs[1].env.Payload, &pay))
	assert.Equal(t, int64(10000), pay.AmountCents)
	assert.Equal(t, "USD", pay.Currency)
}

func TestSagaExecuteValidationFailure(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	saga := &Saga{Bookings: store, Bus: bus, ServiceName: "test"}

	in := testSagaInput()
	in.UserID = ""
	_, err := saga.Execute(context.Background(), in)
	assert.Equal(t, "Booking.InvalidUser", domain.Code(err))

	// Nothing persisted, nothing published.
	assert.Empty(t, store.byID)
	assert.Empty(t, bus.msgs)
}

func TestSagaExecutePublishFailureCompensates(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{failTopic: events.TopicInitiatePayment}
	saga := &Saga{Bookings: store, Bus: bus, ServiceName: "test"}

	_, err := saga.Execute(context.Background(), testSagaInput())
	require.Error(t, err)

	// The pending booking is marked failed.
	require.Len(t, store.byID, 1)
	for _, b := range store.byID {
		assert.Equal(t, StatusFailed, b.Status)
	}

	// Reserve went out before the failure, so compensation undoes both legs.
	assert.Equal(t, []string{
		events.TopicReserveResource,
		events.TopicReleaseResource,
		events.TopicCancelPayment,
	}, bus.topics())
}

func TestLedgerCancel(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	ledger := &Ledger{Bookings: store, Bus: bus, ServiceName: "test"}

	start := time.Now().UTC().Add(48 * time.Hour)
	b, err := NewBooking("res-1", "user-1", start, start.Add(time.Hour), 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, b.Confirm())
	require.NoError(t, store.Insert(context.Background(), b))

	require.NoError(t, ledger.Cancel(context.Background(), b.ID, "changed plans"))

	got, err := store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "changed plans", got.CancelReason)

	// Cancellation frees the slot and announces itself for refunds.
	assert.Equal(t, []string{events.TopicReleaseResource, events.TopicBookingCancelled}, bus.topics())
}

func TestLedgerCancelTooLate(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	ledger := &Ledger{Bookings: store, Bus: bus, ServiceName: "test"}

	start := time.Now().UTC().Add(2 * time.Hour)
	b, err := NewBooking("res-1", "user-1", start, start.Add(time.Hour), 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), b))

	err = ledger.Cancel(context.Background(), b.ID, "last minute")
	assert.Equal(t, "Booking.TooLateToCancel", domain.Code(err))
	assert.Empty(t, bus.msgs)
}
