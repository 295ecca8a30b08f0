package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/ids"
	"travelhub/api/internal/models"
)

type PackageFinder interface {
	GetByID(ctx context.Context, id string) (models.Package, error)
	ListActive(ctx context.Context) ([]models.Package, error)
}

type BookingCreator interface {
	Create(ctx context.Context, b models.Booking) error
}

// Service drives the wizard for the HTTP layer and persists finished drafts.
type Service struct {
	wizards  *Wizards
	packages PackageFinder
	bookings BookingCreator
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(wizards *Wizards, packages PackageFinder, bookings BookingCreator, log zerolog.Logger) *Service {
	return &Service{
		wizards:  wizards,
		packages: packages,
		bookings: bookings,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Packages(ctx context.Context) ([]models.Package, error) {
	return s.packages.ListActive(ctx)
}

func (s *Service) Start(ownerID string) Draft {
	return s.wizards.Start(ownerID)
}

func (s *Service) Get(id, ownerID string) (Draft, error) {
	return s.wizards.Get(id, ownerID)
}

func (s *Service) Discard(id, ownerID string) bool {
	return s.wizards.Discard(id, ownerID)
}

// DiscardOwner drops every draft of ownerID, used on logout.
func (s *Service) DiscardOwner(ownerID string) int {
	return s.wizards.DiscardOwner(ownerID)
}

func (s *Service) SelectPackage(ctx context.Context, id, ownerID, packageID string) (Draft, error) {
	// fail fast on a foreign or expired draft before hitting the database
	if _, err := s.wizards.Get(id, ownerID); err != nil {
		return Draft{}, err
	}

	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return Draft{}, fmt.Errorf("load package: %w", err)
	}

	return s.wizards.With(id, ownerID, func(d *Draft) error {
		return d.SelectPackage(pkg)
	})
}

func (s *Service) SetSchedule(id, ownerID string, departure time.Time, adults, children int) (Draft, error) {
	now := s.now()
	return s.wizards.With(id, ownerID, func(d *Draft) error {
		return d.SetSchedule(departure, adults, children, now)
	})
}

func (s *Service) SetTravelers(id, ownerID string, lead models.Traveler, companions []models.Traveler) (Draft, error) {
	return s.wizards.With(id, ownerID, func(d *Draft) error {
		d.SetTravelers(lead, companions)
		return nil
	})
}

func (s *Service) SetAddOns(id, ownerID string, codes []string) (Draft, error) {
	return s.wizards.With(id, ownerID, func(d *Draft) error {
		return d.SetAddOns(codes)
	})
}

func (s *Service) Next(id, ownerID string) (Draft, error) {
	return s.wizards.With(id, ownerID, (*Draft).Next)
}

func (s *Service) Back(id, ownerID string) (Draft, error) {
	return s.wizards.With(id, ownerID, (*Draft).Back)
}

// Submit persists a complete draft as a pending, unpaid booking and discards
// the draft. On failure the draft stays editable.
func (s *Service) Submit(ctx context.Context, id, ownerID string) (models.Booking, error) {
	draft, err := s.wizards.claim(id, ownerID)
	if err != nil {
		return models.Booking{}, err
	}

	if err := draft.Complete(); err != nil {
		s.wizards.release(id)
		return models.Booking{}, err
	}
	if draft.Step != StepReview {
		s.wizards.release(id)
		return models.Booking{}, &ValidationError{Step: draft.Step, Missing: []string{"review"}}
	}

	now := s.now()
	booking := models.Booking{
		ID:            ids.New(),
		Number:        ids.BookingNumber(now),
		UserID:        ownerID,
		PackageID:     draft.Package.ID,
		DepartureDate: draft.DepartureDate,
		Adults:        draft.Adults,
		Children:      draft.Children,
		LeadTraveler:  draft.LeadTraveler,
		Travelers:     draft.Travelers,
		AddOns:        draft.AddOns,
		TotalMinor:    draft.Totals.TotalMinor,
		Currency:      draft.Totals.Currency,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if booking.Travelers == nil {
		booking.Travelers = []models.Traveler{}
	}
	if booking.AddOns == nil {
		booking.AddOns = []string{}
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		s.wizards.release(id)
		return models.Booking{}, fmt.Errorf("create booking: %w", err)
	}
	s.wizards.finish(id)

	s.log.Info().
		Str("booking", booking.Number).
		Str("user_id", ownerID).
		Int64("total_minor", booking.TotalMinor).
		Msg("booking submitted")
	return booking, nil
}

// IsClientError reports whether err is caused by the request rather than by
// the server.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrIncomplete, ErrFirstStep, ErrLastStep, ErrPackageInactive,
		ErrUnknownAddOn, ErrGroupTooLarge, ErrDepartureInPast, ErrSubmitting,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
