package payment

import (
	"net/url"
	"strings"
)

const (
	SuccessPath   = "/booking/payment-success"
	FailurePath   = "/booking/payment-failed"
	CancelledPath = "/booking/payment-cancelled"
)

type Redirects struct {
	Success string
	Failure string
	Cancel  string
}

// RedirectURLs builds the post-checkout landing addresses for a booking.
func RedirectURLs(origin, bookingNumber string) Redirects {
	origin = strings.TrimRight(origin, "/")
	query := "?booking=" + url.QueryEscape(bookingNumber)
	return Redirects{
		Success: origin + SuccessPath + query,
		Failure: origin + FailurePath + query,
		Cancel:  origin + CancelledPath + query,
	}
}
