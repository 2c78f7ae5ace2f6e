package resource

import (
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/google/uuid"
)

type Status string

const (
	StatusActive           Status = "ACTIVE"
	StatusInactive         Status = "INACTIVE"
	StatusUnderMaintenance Status = "UNDER_MAINTENANCE"
	StatusDecommissioned   Status = "DECOMMISSIONED"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotReserved  SlotStatus = "RESERVED"
	SlotBlocked   SlotStatus = "BLOCKED"
)

type Location struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type Capacity struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type TimeSlot struct {
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Status SlotStatus `json:"status"`
}

// Overlaps uses half-open intervals: [10:00,11:00) and [11:00,12:00) do
// not overlap.
func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return s.Start.Before(o.End) && s.End.After(o.Start)
}

type Resource struct {
	ID                string
	Name              string
	Location          Location
	Capacity          Capacity
	PricePerHourCents int64
	Status            Status
	CreatedAt         time.Time

	// Reserved and blocked slots; mutated only while holding the
	// resource's distributed lock.
	Slots []TimeSlot
}

func NewResource(name string, loc Location, cap Capacity, pricePerHourCents int64) (*Resource, error) {
	if name == "" {
		return nil, domain.E("Resource.InvalidName", "resource name cannot be empty")
	}
	if pricePerHourCents < 0 {
		return nil, domain.E("Resource.InvalidPrice", "price cannot be negative")
	}
	if cap.Max <= 0 || cap.Min <= 0 || cap.Min > cap.Max {
		return nil, domain.E("Resource.InvalidCapacity", "capacity bounds must be positive and min <= max")
	}
	return &Resource{
		ID:                uuid.NewString(),
		Name:              name,
		Location:          loc,
		Capacity:          cap,
		PricePerHourCents: pricePerHourCents,
		Status:            StatusActive,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// ReserveSlot scans the existing reserved slots for a conflict and appends
// a new one. Returns the generated reservation id.
func (r *Resource) ReserveSlot(start, end time.Time) (string, error) {
	if r.Status != StatusActive {
		return "", domain.E("Resource.NotActive", "resource is not available for booking")
	}
	if !start.Before(end) {
		return "", domain.E("Resource.InvalidTimeRange", "start time must be before end time")
	}
	if start.Before(time.Now().UTC()) {
		return "", domain.E("Resource.PastTime", "cannot reserve a slot in the past")
	}

	slot := TimeSlot{Start: start, End: end, Status: SlotReserved}
	for _, s := range r.Slots {
		if s.Status == SlotReserved && s.Overlaps(slot) {
			return "", domain.E("Resource.SlotConflict", "the requested time slot conflicts with an existing reservation")
		}
	}

	r.Slots = append(r.Slots, slot)
	return uuid.NewString(), nil
}

// ReleaseSlot removes the reserved slot matching [start,end) exactly. The
// compensation path calls this; a second release only reports not-found.
func (r *Resource) ReleaseSlot(start, end time.Time) error {
	for i, s := range r.Slots {
		if s.Status == SlotReserved && s.Start.Equal(start) && s.End.Equal(end) {
			r.Slots = append(r.Slots[:i], r.Slots[i+1:]...)
			return nil
		}
	}
	return domain.E("Resource.SlotNotFound", "no reserved slot found for the specified time range")
}

func (r *Resource) AvailableAt(start, end time.Time) bool {
	if r.Status != StatusActive {
		return false
	}
	check := TimeSlot{Start: start, End: end}
	for _, s := range r.Slots {
		if s.Status == SlotReserved && s.Overlaps(check) {
			return false
		}
	}
	return true
}
