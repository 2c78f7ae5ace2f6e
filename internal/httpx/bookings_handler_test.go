package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-booking-saga.git/internal/booking"
	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	byID map[string]*booking.Booking
}

func (m *memStore) Insert(ctx context.Context, b *booking.Booking) error {
	cp := *b
	m.byID[b.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*booking.Booking, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, domain.E("Booking.NotFound", "booking not found: "+id)
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) Update(ctx context.Context, b *booking.Booking) error {
	cp := *b
	m.byID[b.ID] = &cp
	return nil
}

type nopBus struct{}

func (nopBus) Publish(topic string, key, value []byte, headers ...kafkago.Header) error { return nil }

func testHandler(t *testing.T) (*BookingsHandler, *memStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	store := &memStore{byID: map[string]*booking.Booking{}}
	h := &BookingsHandler{
		Saga:   &booking.Saga{Bookings: store, Bus: nopBus{}, ServiceName: "test"},
		Ledger: &booking.Ledger{Bookings: store, Bus: nopBus{}, ServiceName: "test"},
		Redis:  rdb,
	}
	return h, store, s
}

func serveJSON(t *testing.T, h *BookingsHandler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter()
	h.Register(r)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateBookingAccepted(t *testing.T) {
	h, store, _ := testHandler(t)

	start := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(50 * time.Hour).Format(time.RFC3339)
	body := fmt.Sprintf(`{"resource_id":"res-1","user_id":"user-1","start_time":%q,"end_time":%q,"price_per_hour_cents":5000,"currency":"USD"}`, start, end)

	w := serveJSON(t, h, http.MethodPost, "/bookings", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp CreateBookingResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BookingID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Contains(t, store.byID, resp.BookingID)
}

func TestCreateBookingBadRequest(t *testing.T) {
	h, _, _ := testHandler(t)

	w := serveJSON(t, h, http.MethodPost, "/bookings", `{"resource_id":"","user_id":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serveJSON(t, h, http.MethodPost, "/bookings", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBookingCacheHit(t *testing.T) {
	h, _, s := testHandler(t)

	require.NoError(t, s.Set("booking_status:bk-1", `{"status":"CONFIRMED"}`))
	w := serveJSON(t, h, http.MethodGet, "/bookings/bk-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"CONFIRMED"}`, w.Body.String())
}

func TestGetBookingNotFound(t *testing.T) {
	h, _, _ := testHandler(t)

	w := serveJSON(t, h, http.MethodGet, "/bookings/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelBookingTooLate(t *testing.T) {
	h, store, _ := testHandler(t)

	start := time.Now().UTC().Add(2 * time.Hour)
	b, err := booking.NewBooking("res-1", "user-1", start, start.Add(time.Hour), 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), b))

	w := serveJSON(t, h, http.MethodPost, "/bookings/"+b.ID+"/cancel", `{"reason":"late"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Booking.TooLateToCancel", resp["code"])
}

func TestCancelBookingOK(t *testing.T) {
	h, store, _ := testHandler(t)

	start := time.Now().UTC().Add(48 * time.Hour)
	b, err := booking.NewBooking("res-1", "user-1", start, start.Add(time.Hour), 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), b))

	w := serveJSON(t, h, http.MethodPost, "/bookings/"+b.ID+"/cancel", `{"reason":"changed plans"}`)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
}
