package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"travelhub/api/internal/models"
	"travelhub/api/internal/payment"
	"travelhub/api/internal/queue"
	"travelhub/api/internal/repository"
)

type PurchaseFetcher interface {
	GetPurchase(ctx context.Context, id string) (payment.Purchase, error)
}

type BookingStore interface {
	GetByNumber(ctx context.Context, number string) (models.Booking, error)
	GetByPurchaseID(ctx context.Context, purchaseID string) (models.Booking, error)
	SetPurchase(ctx context.Context, number string, purchaseID string) error
	UpdatePaymentStatus(ctx context.Context, number string, status models.BookingStatus, payment models.PaymentStatus) error
}

type Processor struct {
	gateway  PurchaseFetcher
	bookings BookingStore
	logger   zerolog.Logger
}

func NewProcessor(gateway PurchaseFetcher, bookings BookingStore, logger zerolog.Logger) *Processor {
	return &Processor{
		gateway:  gateway,
		bookings: bookings,
		logger:   logger,
	}
}

// Handle returns an error only for failures worth retrying; the message then
// stays pending and is claimed again.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable task")
		return nil
	}

	switch task.Type {
	case queue.TaskReconcilePayment:
		return p.Reconcile(ctx, task)
	default:
		p.logger.Warn().Str("type", string(task.Type)).Msg("unknown task type")
		return nil
	}
}

// Reconcile reads the purchase from the gateway and applies its status to
// the booking it belongs to.
func (p *Processor) Reconcile(ctx context.Context, task queue.Task) error {
	log := p.logger.With().
		Str("purchase", task.PurchaseID).
		Str("booking", task.BookingNumber).
		Str("source", task.Source).
		Logger()

	purchaseID := task.PurchaseID
	if purchaseID == "" {
		b, err := p.bookings.GetByNumber(ctx, task.BookingNumber)
		if err != nil {
			if errors.Is(err, repository.ErrBookingNotFound) {
				log.Warn().Msg("reconcile for unknown booking dropped")
				return nil
			}
			return fmt.Errorf("load booking: %w", err)
		}
		if b.PurchaseID == nil {
			log.Info().Msg("booking has no purchase yet")
			return nil
		}
		purchaseID = *b.PurchaseID
	}

	purchase, err := p.gateway.GetPurchase(ctx, purchaseID)
	if err != nil {
		var gerr *payment.GatewayError
		if errors.As(err, &gerr) && gerr.Status == http.StatusNotFound {
			log.Warn().Msg("purchase unknown to gateway, dropped")
			return nil
		}
		return fmt.Errorf("get purchase: %w", err)
	}

	booking, err := p.bookingFor(ctx, purchase)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			log.Warn().Str("reference", purchase.Reference).Msg("purchase does not match any booking")
			return nil
		}
		return err
	}

	status, paymentStatus, ok := payment.BookingStatusFor(purchase.Status)
	if !ok {
		log.Debug().Str("status", purchase.Status).Msg("purchase still in progress")
		return nil
	}

	if paymentStatus == models.PaymentStatusPaid && purchase.Purchase.Total != 0 && purchase.Purchase.Total != booking.TotalMinor {
		log.Error().
			Int64("paid_minor", purchase.Purchase.Total).
			Int64("expected_minor", booking.TotalMinor).
			Msg("paid amount does not match booking total, leaving booking unconfirmed")
		return nil
	}

	if booking.PaymentStatus == paymentStatus && booking.Status == status {
		return nil
	}
	if booking.PaymentStatus == models.PaymentStatusPaid && paymentStatus != models.PaymentStatusPaid {
		log.Warn().Str("status", purchase.Status).Msg("ignoring status change on a paid booking")
		return nil
	}

	if err := p.bookings.UpdatePaymentStatus(ctx, booking.Number, status, paymentStatus); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	log.Info().
		Str("booking", booking.Number).
		Str("status", string(status)).
		Str("payment_status", string(paymentStatus)).
		Msg("booking payment reconciled")
	return nil
}

func (p *Processor) bookingFor(ctx context.Context, purchase payment.Purchase) (models.Booking, error) {
	booking, err := p.bookings.GetByPurchaseID(ctx, purchase.ID)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, repository.ErrBookingNotFound) || purchase.Reference == "" {
		return models.Booking{}, err
	}

	// the purchase link may have failed at checkout; fall back to the reference
	booking, err = p.bookings.GetByNumber(ctx, purchase.Reference)
	if err != nil {
		return models.Booking{}, err
	}
	if err := p.bookings.SetPurchase(ctx, booking.Number, purchase.ID); err != nil {
		return models.Booking{}, fmt.Errorf("link purchase: %w", err)
	}
	id := purchase.ID
	booking.PurchaseID = &id
	return booking, nil
}
