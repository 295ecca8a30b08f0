package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"travelhub/api/internal/config"
)

// Gateway is the subset of Client used by the adapter and the worker.
type Gateway interface {
	CreatePurchase(ctx context.Context, req PurchaseRequest) (Purchase, error)
	GetPurchase(ctx context.Context, id string) (Purchase, error)
}

// PurchaseRecorder links a created purchase to its booking.
type PurchaseRecorder interface {
	SetPurchase(ctx context.Context, bookingNumber string, purchaseID string) error
}

type CheckoutInput struct {
	BookingNumber string  `json:"bookingNumber"`
	Email         string  `json:"email"`
	FullName      string  `json:"fullName"`
	Phone         string  `json:"phone"`
	Amount        float64 `json:"amount"`
	Origin        string  `json:"origin"`
}

type CheckoutResult struct {
	Success     bool      `json:"success"`
	CheckoutURL string    `json:"checkoutUrl,omitempty"`
	PurchaseID  string    `json:"purchaseId,omitempty"`
	Error       string    `json:"error,omitempty"`
	Purchase    *Purchase `json:"-"`
}

type Adapter struct {
	gateway     Gateway
	recorder    PurchaseRecorder
	brandID     string
	currency    string
	callbackURL string
	log         zerolog.Logger
}

func NewAdapter(gateway Gateway, recorder PurchaseRecorder, cfg config.PaymentConfig, log zerolog.Logger) *Adapter {
	return &Adapter{
		gateway:     gateway,
		recorder:    recorder,
		brandID:     cfg.BrandID,
		currency:    cfg.Currency,
		callbackURL: cfg.CallbackURL,
		log:         log,
	}
}

func (in CheckoutInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.BookingNumber) == "" {
		missing = append(missing, "bookingNumber")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(in.Origin) == "" {
		missing = append(missing, "origin")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	if ToMinorUnits(in.Amount) <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

// Request builds the gateway purchase for a booking checkout.
func (a *Adapter) Request(in CheckoutInput) PurchaseRequest {
	redirects := RedirectURLs(in.Origin, in.BookingNumber)
	return PurchaseRequest{
		Client: Customer{
			Email:    strings.TrimSpace(in.Email),
			FullName: strings.TrimSpace(in.FullName),
			Phone:    strings.TrimSpace(in.Phone),
		},
		Purchase: PurchaseDetails{
			Products: []Product{{
				Name:     "Booking " + in.BookingNumber,
				Quantity: 1,
				Price:    ToMinorUnits(in.Amount),
			}},
			Currency: a.currency,
		},
		BrandID:         a.brandID,
		SuccessRedirect: redirects.Success,
		FailureRedirect: redirects.Failure,
		CancelRedirect:  redirects.Cancel,
		SuccessCallback: a.callbackURL,
		Reference:       in.BookingNumber,
	}
}

// StartCheckout requests a hosted checkout for a booking. Every failure,
// panics included, comes back as an unsuccessful result.
func (a *Adapter) StartCheckout(ctx context.Context, in CheckoutInput) (res CheckoutResult) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("booking", in.BookingNumber).Msg("checkout panicked")
			res = CheckoutResult{Error: "payment could not be started"}
		}
	}()

	if err := in.validate(); err != nil {
		return CheckoutResult{Error: err.Error()}
	}

	purchase, err := a.gateway.CreatePurchase(ctx, a.Request(in))
	if err != nil {
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			return CheckoutResult{Error: gerr.Message}
		}
		a.log.Error().Err(err).Str("booking", in.BookingNumber).Msg("create purchase failed")
		if errors.Is(err, ErrNotConfigured) {
			return CheckoutResult{Error: err.Error()}
		}
		return CheckoutResult{Error: "payment gateway unreachable, please try again"}
	}

	if a.recorder != nil {
		if err := a.recorder.SetPurchase(ctx, in.BookingNumber, purchase.ID); err != nil {
			// the gateway webhook carries the reference, so reconcile still finds the booking
			a.log.Error().Err(err).Str("booking", in.BookingNumber).Str("purchase", purchase.ID).Msg("link purchase to booking failed")
		}
	}

	a.log.Info().
		Str("booking", in.BookingNumber).
		Str("purchase", purchase.ID).
		Int64("amount_minor", ToMinorUnits(in.Amount)).
		Msg("checkout started")

	return CheckoutResult{
		Success:     true,
		CheckoutURL: purchase.CheckoutURL,
		PurchaseID:  purchase.ID,
		Purchase:    &purchase,
	}
}
