package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/booking"
	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/ariefcatur/go-booking-saga.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

type CreateBookingReq struct {
	ResourceID        string    `json:"resource_id"`
	UserID            string    `json:"user_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	PricePerHourCents int64     `json:"price_per_hour_cents"`
	Currency          string    `json:"currency"`
}

type CreateBookingResp struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type CancelBookingReq struct {
	Reason string `json:"reason"`
}

type BookingResp struct {
	BookingID    string     `json:"booking_id"`
	ResourceID   string     `json:"resource_id"`
	UserID       string     `json:"user_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	TotalCents   int64      `json:"total_cents"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

type BookingsHandler struct {
	Saga   *booking.Saga
	Ledger *booking.Ledger
	Redis  *redis.Client
}

func (h *BookingsHandler) Register(r *chi.Mux) {
	r.Post("/bookings", h.createBooking)
	r.Get("/bookings/{id}", h.getBooking)
	r.Post("/bookings/{id}/cancel", h.cancelBooking)
	r.Post("/bookings/{id}/complete", h.completeBooking)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps coded domain errors onto HTTP statuses; anything without a
// code is a 500.
func writeErr(w http.ResponseWriter, err error) {
	code := domain.Code(err)
	switch {
	case code == "":
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case strings.HasSuffix(code, ".NotFound"):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "code": code})
	case strings.HasSuffix(code, ".Conflict"):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "code": code})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "code": code})
	}
}

func (h *BookingsHandler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ResourceID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bookingID, err := h.Saga.Execute(ctx, booking.CreateBooking{
		ResourceID:        req.ResourceID,
		UserID:            req.UserID,
		Start:             req.StartTime,
		End:               req.EndTime,
		PricePerHourCents: req.PricePerHourCents,
		Currency:          req.Currency,
		TraceID:           middleware.GetReqID(r.Context()),
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	// Cache PENDING so the immediate status poll skips the DB.
	_ = h.Redis.Set(ctx, redisx.BookingStatusKey(bookingID), `{"status":"PENDING"}`, redisx.TTLStatusCache).Err()

	writeJSON(w, http.StatusAccepted, CreateBookingResp{BookingID: bookingID, Status: string(booking.StatusPending)})
}

func (h *BookingsHandler) getBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// Fast path: status cache written by the confirmer.
	if s, err := h.Redis.Get(ctx, redisx.BookingStatusKey(id)).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	b, err := h.Ledger.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := BookingResp{
		BookingID:    b.ID,
		ResourceID:   b.ResourceID,
		UserID:       b.UserID,
		StartTime:    b.Period.Start,
		EndTime:      b.Period.End,
		TotalCents:   b.TotalCents,
		Currency:     b.Currency,
		Status:       string(b.Status),
		CancelReason: b.CancelReason,
		ConfirmedAt:  b.ConfirmedAt,
		CancelledAt:  b.CancelledAt,
	}
	body, _ := json.Marshal(map[string]any{"status": b.Status})
	_ = h.Redis.Set(ctx, redisx.BookingStatusKey(id), body, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingsHandler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	var req CancelBookingReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Cancel(ctx, id, req.Reason); err != nil {
		writeErr(w, err)
		return
	}
	_ = h.Redis.Set(ctx, redisx.BookingStatusKey(id), `{"status":"CANCELLED"}`, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, map[string]string{"booking_id": id, "status": string(booking.StatusCancelled)})
}

func (h *BookingsHandler) completeBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Complete(ctx, id); err != nil {
		writeErr(w, err)
		return
	}
	_ = h.Redis.Set(ctx, redisx.BookingStatusKey(id), `{"status":"COMPLETED"}`, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, map[string]string{"booking_id": id, "status": string(booking.StatusCompleted)})
}
