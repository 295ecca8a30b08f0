package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"travelhub/api/internal/models"
	"travelhub/api/internal/payment"
	"travelhub/api/internal/queue"
	"travelhub/api/internal/repository"
)

type stubGateway struct {
	purchases map[string]payment.Purchase
	err       error
}

func (g stubGateway) GetPurchase(_ context.Context, id string) (payment.Purchase, error) {
	if g.err != nil {
		return payment.Purchase{}, g.err
	}
	p, ok := g.purchases[id]
	if !ok {
		return payment.Purchase{}, &payment.GatewayError{Status: 404, Message: "Not found."}
	}
	return p, nil
}

type memBookings struct {
	rows    map[string]models.Booking
	updates int
}

func (m *memBookings) GetByNumber(_ context.Context, number string) (models.Booking, error) {
	b, ok := m.rows[number]
	if !ok {
		return models.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (m *memBookings) GetByPurchaseID(_ context.Context, purchaseID string) (models.Booking, error) {
	for _, b := range m.rows {
		if b.PurchaseID != nil && *b.PurchaseID == purchaseID {
			return b, nil
		}
	}
	return models.Booking{}, repository.ErrBookingNotFound
}

func (m *memBookings) SetPurchase(_ context.Context, number, purchaseID string) error {
	b := m.rows[number]
	b.PurchaseID = &purchaseID
	m.rows[number] = b
	return nil
}

func (m *memBookings) UpdatePaymentStatus(_ context.Context, number string, status models.BookingStatus, pay models.PaymentStatus) error {
	b := m.rows[number]
	b.Status = status
	b.PaymentStatus = pay
	m.rows[number] = b
	m.updates++
	return nil
}

func strptr(s string) *string { return &s }

func pendingBooking(number string, purchaseID *string) models.Booking {
	return models.Booking{
		Number:        number,
		TotalMinor:    1250000,
		Currency:      "MYR",
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		PurchaseID:    purchaseID,
	}
}

func paid(id, reference string, total int64) payment.Purchase {
	return payment.Purchase{ID: id, Status: payment.StatusPaid, Reference: reference, Purchase: payment.PurchaseDetails{Total: total, Currency: "MYR"}}
}

func TestReconcileMarksBookingPaid(t *testing.T) {
	bookings := &memBookings{rows: map[string]models.Booking{"TH-1": pendingBooking("TH-1", strptr("pur_1"))}}
	p := NewProcessor(stubGateway{purchases: map[string]payment.Purchase{"pur_1": paid("pur_1", "TH-1", 1250000)}}, bookings, zerolog.Nop())

	if err := p.Reconcile(context.Background(), queue.Task{Type: queue.TaskReconcilePayment, PurchaseID: "pur_1"}); err != nil {
		t.Fatal(err)
	}
	got := bookings.rows["TH-1"]
	if got.Status != models.BookingStatusConfirmed || got.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("booking = %s/%s", got.Status, got.PaymentStatus)
	}

	// replays are no-ops
	if err := p.Reconcile(context.Background(), queue.Task{Type: queue.TaskReconcilePayment, PurchaseID: "pur_1"}); err != nil {
		t.Fatal(err)
	}
	if bookings.updates != 1 {
		t.Fatalf("updates = %d, want 1", bookings.updates)
	}
}

func TestReconcileFallsBackToReference(t *testing.T) {
	bookings := &memBookings{rows: map[string]models.Booking{"TH-2": pendingBooking("TH-2", nil)}}
	p := NewProcessor(stubGateway{purchases: map[string]payment.Purchase{"pur_2": paid("pur_2", "TH-2", 1250000)}}, bookings, zerolog.Nop())

	if err := p.Reconcile(context.Background(), queue.Task{PurchaseID: "pur_2"}); err != nil {
		t.Fatal(err)
	}
	got := bookings.rows["TH-2"]
	if got.PurchaseID == nil || *got.PurchaseID != "pur_2" {
		t.Fatal("purchase not linked")
	}
	if got.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment status = %s", got.PaymentStatus)
	}
}

func TestReconcileByBookingNumber(t *testing.T) {
	cancelled := payment.Purchase{ID: "pur_3", Status: payment.StatusCancelled, Reference: "TH-3"}
	bookings := &memBookings{rows: map[string]models.Booking{"TH-3": pendingBooking("TH-3", strptr("pur_3"))}}
	p := NewProcessor(stubGateway{purchases: map[string]payment.Purchase{"pur_3": cancelled}}, bookings, zerolog.Nop())

	if err := p.Reconcile(context.Background(), queue.Task{BookingNumber: "TH-3"}); err != nil {
		t.Fatal(err)
	}
	if got := bookings.rows["TH-3"]; got.Status != models.BookingStatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestReconcileRefusesAmountMismatch(t *testing.T) {
	bookings := &memBookings{rows: map[string]models.Booking{"TH-4": pendingBooking("TH-4", strptr("pur_4"))}}
	p := NewProcessor(stubGateway{purchases: map[string]payment.Purchase{"pur_4": paid("pur_4", "TH-4", 100)}}, bookings, zerolog.Nop())

	if err := p.Reconcile(context.Background(), queue.Task{PurchaseID: "pur_4"}); err != nil {
		t.Fatal(err)
	}
	if bookings.updates != 0 {
		t.Fatal("underpaid booking confirmed")
	}
}

func TestReconcileKeepsPaidBooking(t *testing.T) {
	b := pendingBooking("TH-5", strptr("pur_5"))
	b.Status = models.BookingStatusConfirmed
	b.PaymentStatus = models.PaymentStatusPaid
	bookings := &memBookings{rows: map[string]models.Booking{"TH-5": b}}
	failed := payment.Purchase{ID: "pur_5", Status: payment.StatusError}
	p := NewProcessor(stubGateway{purchases: map[string]payment.Purchase{"pur_5": failed}}, bookings, zerolog.Nop())

	if err := p.Reconcile(context.Background(), queue.Task{PurchaseID: "pur_5"}); err != nil {
		t.Fatal(err)
	}
	if bookings.updates != 0 {
		t.Fatal("paid booking downgraded")
	}
}

func TestReconcileRetryableErrors(t *testing.T) {
	bookings := &memBookings{rows: map[string]models.Booking{}}

	down := NewProcessor(stubGateway{err: errors.New("connection refused")}, bookings, zerolog.Nop())
	if err := down.Reconcile(context.Background(), queue.Task{PurchaseID: "pur_1"}); err == nil {
		t.Fatal("network failure should be retried")
	}

	gone := NewProcessor(stubGateway{purchases: map[string]payment.Purchase{}}, bookings, zerolog.Nop())
	if err := gone.Reconcile(context.Background(), queue.Task{PurchaseID: "pur_x"}); err != nil {
		t.Fatalf("unknown purchase should be dropped: %v", err)
	}
}

func TestHandleIgnoresUnknownTasks(t *testing.T) {
	p := NewProcessor(stubGateway{}, &memBookings{rows: map[string]models.Booking{}}, zerolog.Nop())
	msg := redis.XMessage{ID: "1-0", Values: map[string]interface{}{"type": "thumbnail"}}
	if err := p.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
}
