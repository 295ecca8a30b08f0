package ids

import (
	"strings"
	"testing"
	"time"
)

func TestBookingNumber(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	n := BookingNumber(now)
	if !strings.HasPrefix(n, "TH-261019-") {
		t.Fatalf("number = %q", n)
	}
	if len(n) != len("TH-261019-")+6 {
		t.Fatalf("number length = %d", len(n))
	}
	if n == BookingNumber(now) {
		t.Fatal("booking numbers collide")
	}
}
