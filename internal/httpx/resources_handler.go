package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/resource"
	"github.com/go-chi/chi/v5"
)

type CreateResourceReq struct {
	Name              string            `json:"name"`
	Location          resource.Location `json:"location"`
	Capacity          resource.Capacity `json:"capacity"`
	PricePerHourCents int64             `json:"price_per_hour_cents"`
}

type ResourceResp struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Location          resource.Location   `json:"location"`
	Capacity          resource.Capacity   `json:"capacity"`
	PricePerHourCents int64               `json:"price_per_hour_cents"`
	Status            string              `json:"status"`
	Slots             []resource.TimeSlot `json:"slots,omitempty"`
}

type ResourcesHandler struct {
	Repo *resource.Repo
}

func (h *ResourcesHandler) Register(r *chi.Mux) {
	r.Post("/resources", h.createResource)
	r.Get("/resources/{id}", h.getResource)
	r.Get("/resources/{id}/availability", h.checkAvailability)
}

func (h *ResourcesHandler) createResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	res, err := resource.NewResource(req.Name, req.Location, req.Capacity, req.PricePerHourCents)
	if err != nil {
		writeErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.Insert(ctx, res); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, toResourceResp(res))
}

func (h *ResourcesHandler) getResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Repo.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceResp(res))
}

// checkAvailability answers "is [start,end) free" without reserving
// anything; the saga still does its own conflict check under the lock.
func (h *ResourcesHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start, err1 := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	end, err2 := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if id == "" || err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id or invalid start/end"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Repo.Get(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource_id": id,
		"available":   res.AvailableAt(start, end),
	})
}

func toResourceResp(res *resource.Resource) ResourceResp {
	return ResourceResp{
		ID:                res.ID,
		Name:              res.Name,
		Location:          res.Location,
		Capacity:          res.Capacity,
		PricePerHourCents: res.PricePerHourCents,
		Status:            string(res.Status),
		Slots:             res.Slots,
	}
}
