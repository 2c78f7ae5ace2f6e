package events

const (
	TopicReserveResource  = "booking.resource.reserve"
	TopicReleaseResource  = "booking.resource.release"
	TopicResourceReserved = "booking.resource.reserved"
	TopicResourceRejected = "booking.resource.rejected"

	TopicInitiatePayment  = "booking.payment.initiate"
	TopicCancelPayment    = "booking.payment.cancel"
	TopicPaymentCompleted = "booking.payment.completed"
	TopicPaymentFailed    = "booking.payment.failed"
	TopicPaymentRefunded  = "booking.payment.refunded"

	TopicBookingConfirmed = "booking.confirmed"
	TopicBookingCancelled = "booking.cancelled"
)

// Partition key = booking_id so all events for one booking keep their order.
func PartitionKey(bookingID string) []byte { return []byte(bookingID) }
