package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travelhub/api/internal/middleware"
	"travelhub/api/internal/models"
	"travelhub/api/internal/payment"
	"travelhub/api/internal/queue"
	"travelhub/api/internal/repository"
)

// CreatePayment starts a hosted checkout. Any failure is answered with 500
// and the adapter's message.
func (h *HandlerSet) CreatePayment(c *gin.Context) {
	var in payment.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.metrics.Checkout(false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid request body"})
		return
	}

	res := h.checkout.StartCheckout(c.Request.Context(), in)
	h.metrics.Checkout(res.Success)
	if !res.Success {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error})
		return
	}
	if res.Purchase != nil {
		c.JSON(http.StatusOK, res.Purchase)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PaymentCallback accepts a signed gateway callback and queues a reconcile.
// The body is only used to find the purchase; its status is re-read from the
// gateway by the worker.
func (h *HandlerSet) PaymentCallback(c *gin.Context) {
	var purchase payment.Purchase
	if err := c.ShouldBindJSON(&purchase); err != nil || (purchase.ID == "" && purchase.Reference == "") {
		h.metrics.Webhook("invalid_payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	if err := h.enqueueReconcile(c.Request.Context(), purchase.ID, purchase.Reference, "webhook"); err != nil {
		h.metrics.Webhook("enqueue_failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue_unavailable"})
		return
	}

	h.metrics.Webhook("accepted")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

type purchaseStatusResponse struct {
	PurchaseID    string `json:"purchaseId"`
	Status        string `json:"status"`
	BookingNumber string `json:"bookingNumber"`
	PaymentStatus string `json:"paymentStatus"`
	CheckoutURL   string `json:"checkoutUrl,omitempty"`
}

// PurchaseStatus polls the gateway for a purchase of one of the caller's
// bookings and queues a reconcile so the booking catches up.
func (h *HandlerSet) PurchaseStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	purchaseID := c.Param("purchaseId")

	b, err := h.bookings.GetByPurchaseID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase_not_found"})
			return
		}
		h.log.Error().Err(err).Str("purchase", purchaseID).Msg("load booking for purchase failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if b.UserID != user.ID && !user.Role.In(bookingStaff...) {
		c.JSON(http.StatusNotFound, gin.H{"error": "purchase_not_found"})
		return
	}

	purchase, err := h.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		var gerr *payment.GatewayError
		if errors.As(err, &gerr) && gerr.Status == http.StatusNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase_not_found"})
			return
		}
		h.log.Error().Err(err).Str("purchase", purchaseID).Msg("poll purchase failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
		return
	}

	if _, _, final := payment.BookingStatusFor(purchase.Status); final && b.PaymentStatus == models.PaymentStatusUnpaid {
		if err := h.enqueueReconcile(ctx, purchase.ID, b.Number, "poll"); err != nil {
			h.log.Warn().Err(err).Str("purchase", purchase.ID).Msg("queue reconcile after poll failed")
		}
	}

	c.JSON(http.StatusOK, purchaseStatusResponse{
		PurchaseID:    purchase.ID,
		Status:        purchase.Status,
		BookingNumber: b.Number,
		PaymentStatus: string(b.PaymentStatus),
		CheckoutURL:   purchase.CheckoutURL,
	})
}

func (h *HandlerSet) enqueueReconcile(ctx context.Context, purchaseID, bookingNumber, source string) error {
	id, err := h.queue.Enqueue(ctx, queue.Task{
		Type:          queue.TaskReconcilePayment,
		PurchaseID:    purchaseID,
		BookingNumber: bookingNumber,
		Source:        source,
	})
	if err != nil {
		h.log.Error().Err(err).Str("purchase", purchaseID).Str("booking", bookingNumber).Msg("enqueue reconcile failed")
		return err
	}
	h.log.Debug().Str("message_id", id).Str("purchase", purchaseID).Str("source", source).Msg("reconcile queued")
	return nil
}

const (
	outcomeSuccess   = "success"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

var landingMessages = map[string]string{
	outcomeSuccess:   "Payment received. Your booking will be confirmed shortly.",
	outcomeFailed:    "Payment failed. You can retry from your bookings.",
	outcomeCancelled: "Payment was cancelled. Your booking is still pending.",
}

type landingResponse struct {
	Outcome       string           `json:"outcome"`
	Message       string           `json:"message"`
	BookingNumber string           `json:"bookingNumber,omitempty"`
	Booking       *bookingResponse `json:"booking,omitempty"`
}

// PaymentLanding answers the page the gateway redirects to after checkout.
// Booking details are only included for the booking's owner.
func (h *HandlerSet) PaymentLanding(outcome string) gin.HandlerFunc {
	return func(c *gin.Context) {
		number := strings.TrimSpace(c.Query("booking"))
		resp := landingResponse{
			Outcome:       outcome,
			Message:       landingMessages[outcome],
			BookingNumber: number,
		}

		user, signedIn := middleware.CurrentUser(c)
		if number == "" || !signedIn {
			c.JSON(http.StatusOK, resp)
			return
		}

		b, err := h.bookings.GetByNumber(c.Request.Context(), number)
		switch {
		case err == nil && b.UserID == user.ID:
			view := toBookingResponse(b)
			resp.Booking = &view
			if outcome == outcomeSuccess && b.PaymentStatus == models.PaymentStatusUnpaid {
				// the callback may not have arrived yet
				if err := h.enqueueReconcile(c.Request.Context(), derefString(b.PurchaseID), b.Number, "landing"); err != nil {
					h.log.Warn().Err(err).Str("booking", b.Number).Msg("queue reconcile from landing failed")
				}
			}
		case err != nil && !errors.Is(err, repository.ErrBookingNotFound):
			h.log.Error().Err(err).Str("booking", number).Msg("load booking for landing failed")
		}

		c.JSON(http.StatusOK, resp)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
