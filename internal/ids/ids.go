package ids

import (
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

// New returns a k-sortable unique identifier.
func New() string {
	return ksuid.New().String()
}

// BookingNumber returns a customer-facing reference such as
// TH-261019-3F9KQZ: the booking date followed by the tail of a fresh ksuid.
func BookingNumber(now time.Time) string {
	id := ksuid.New().String()
	return "TH-" + now.UTC().Format("060102") + "-" + strings.ToUpper(id[len(id)-6:])
}
