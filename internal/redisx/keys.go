package redisx

import (
	"fmt"
	"time"
)

const (
	// Distributed lock: lock:{key} -> owner token
	KeyLock = "lock:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Saga join state per booking: hash saga:{booking_id}
	// fields: resource -> reservation acked, payment -> payment acked
	KeySagaJoin = "saga:%s"

	// Cache booking status: booking_status:{booking_id} -> JSON
	KeyBookingStatus = "booking_status:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLSagaJoin    = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
)

func dedupKey(service, eventID string) string {
	return fmt.Sprintf(KeyDedup, service, eventID)
}

func SagaJoinKey(bookingID string) string {
	return fmt.Sprintf(KeySagaJoin, bookingID)
}

func BookingStatusKey(bookingID string) string {
	return fmt.Sprintf(KeyBookingStatus, bookingID)
}
