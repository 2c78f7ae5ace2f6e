package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/payment"
	"github.com/go-chi/chi/v5"
)

type RefundReq struct {
	Reason string `json:"reason"`
}

type PaymentsHandler struct {
	Service *payment.Service
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/{id}/refund", h.refund)
	r.Get("/payments/{id}", h.getPayment)
}

func (h *PaymentsHandler) refund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	var req RefundReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	// The gateway call inside can retry for a while; give it room.
	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	if err := h.Service.Refund(ctx, id, req.Reason); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_id": id, "status": string(payment.StatusRefunded)})
}

func (h *PaymentsHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Service.Repo.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id":     p.ID,
		"booking_id":     p.BookingID,
		"amount_cents":   p.AmountCents,
		"currency":       p.Currency,
		"status":         p.Status,
		"external_tx_id": p.ExternalTxID,
		"failure_reason": p.FailureReason,
	})
}
