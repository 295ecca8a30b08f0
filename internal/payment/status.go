package payment

import "travelhub/api/internal/models"

// Gateway purchase statuses the booking flow reacts to.
const (
	StatusPaid      = "paid"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusBlocked   = "blocked"
	StatusRefunded  = "refunded"
)

// BookingStatusFor maps a gateway purchase status onto the booking. ok is
// false for statuses that are still in flight.
func BookingStatusFor(status string) (booking models.BookingStatus, payment models.PaymentStatus, ok bool) {
	switch status {
	case StatusPaid:
		return models.BookingStatusConfirmed, models.PaymentStatusPaid, true
	case StatusError, StatusBlocked, StatusExpired:
		return models.BookingStatusPending, models.PaymentStatusFailed, true
	case StatusCancelled, StatusRefunded:
		return models.BookingStatusCancelled, models.PaymentStatusCancelled, true
	default:
		return "", "", false
	}
}
