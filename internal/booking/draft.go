// Package booking holds the booking wizard: an in-memory draft that
// accumulates selections step by step and is persisted only on submit.
package booking

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"travelhub/api/internal/models"
)

type Step uint8

const (
	StepPackage Step = iota
	StepSchedule
	StepTravelers
	StepAddOns
	StepReview
)

var stepNames = [...]string{
	StepPackage:   "package",
	StepSchedule:  "schedule",
	StepTravelers: "travelers",
	StepAddOns:    "add_ons",
	StepReview:    "review",
}

func (s Step) String() string {
	if int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("step(%d)", uint8(s))
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrIncomplete      = errors.New("booking step incomplete")
	ErrFirstStep       = errors.New("already at the first step")
	ErrLastStep        = errors.New("already at the review step")
	ErrPackageInactive = errors.New("package is not available for booking")
	ErrUnknownAddOn    = errors.New("unknown add-on")
	ErrGroupTooLarge   = errors.New("party exceeds package group size")
	ErrDepartureInPast = errors.New("departure date must be in the future")
)

// ValidationError lists the fields a step still needs.
type ValidationError struct {
	Step    Step
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s step incomplete: missing %s", e.Step, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrIncomplete
}

type Totals struct {
	BaseMinor   int64  `json:"baseMinor"`
	AddOnsMinor int64  `json:"addOnsMinor"`
	TotalMinor  int64  `json:"totalMinor"`
	Currency    string `json:"currency"`
}

// Draft is a booking under construction. It is not safe for concurrent use;
// Wizards serializes access.
type Draft struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"-"`
	Step          Step              `json:"step"`
	Package       *models.Package   `json:"package,omitempty"`
	DepartureDate time.Time         `json:"departureDate,omitempty"`
	Adults        int               `json:"adults"`
	Children      int               `json:"children"`
	LeadTraveler  models.Traveler   `json:"leadTraveler"`
	Travelers     []models.Traveler `json:"travelers"`
	AddOns        []string          `json:"addOns"`
	Totals        Totals            `json:"totals"`
	UpdatedAt     time.Time         `json:"updatedAt"`

	submitting bool
}

func (d *Draft) PartySize() int {
	return d.Adults + d.Children
}

// SelectPackage sets the package. Add-ons the new package does not offer are
// dropped.
func (d *Draft) SelectPackage(pkg models.Package) error {
	if !pkg.Active {
		return ErrPackageInactive
	}
	d.Package = &pkg

	kept := d.AddOns[:0]
	for _, code := range d.AddOns {
		if _, ok := pkg.AddOn(code); ok {
			kept = append(kept, code)
		}
	}
	d.AddOns = kept
	d.recompute()
	return nil
}

func (d *Draft) SetSchedule(departure time.Time, adults, children int, now time.Time) error {
	if !departure.IsZero() && departure.Before(truncateDay(now).AddDate(0, 0, 1)) {
		return ErrDepartureInPast
	}
	if adults < 0 || children < 0 {
		return fmt.Errorf("party size: %w", ErrIncomplete)
	}
	if d.Package != nil && d.Package.MaxGroupSize > 0 && adults+children > d.Package.MaxGroupSize {
		return ErrGroupTooLarge
	}
	d.DepartureDate = truncateDay(departure)
	d.Adults = adults
	d.Children = children
	d.recompute()
	return nil
}

func (d *Draft) SetTravelers(lead models.Traveler, companions []models.Traveler) {
	d.LeadTraveler = normalizeTraveler(lead)
	d.Travelers = make([]models.Traveler, 0, len(companions))
	for _, t := range companions {
		d.Travelers = append(d.Travelers, normalizeTraveler(t))
	}
}

func (d *Draft) SetAddOns(codes []string) error {
	selected := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if _, dup := seen[code]; dup || code == "" {
			continue
		}
		if d.Package == nil {
			return fmt.Errorf("%w %q", ErrUnknownAddOn, code)
		}
		if _, ok := d.Package.AddOn(code); !ok {
			return fmt.Errorf("%w %q", ErrUnknownAddOn, code)
		}
		seen[code] = struct{}{}
		selected = append(selected, code)
	}
	d.AddOns = selected
	d.recompute()
	return nil
}

// Validate checks the fields required by step. It returns a *ValidationError
// wrapping ErrIncomplete.
func (d *Draft) Validate(step Step) error {
	var missing []string

	switch step {
	case StepPackage:
		if d.Package == nil {
			missing = append(missing, "package")
		}
	case StepSchedule:
		if d.DepartureDate.IsZero() {
			missing = append(missing, "departureDate")
		}
		if d.Adults < 1 {
			missing = append(missing, "adults")
		}
		// the package may have been chosen or switched after the party was set
		if d.Package != nil && d.Package.MaxGroupSize > 0 && d.PartySize() > d.Package.MaxGroupSize {
			missing = append(missing, fmt.Sprintf("partySize (at most %d)", d.Package.MaxGroupSize))
		}
	case StepTravelers:
		if d.LeadTraveler.FullName == "" {
			missing = append(missing, "leadTraveler.fullName")
		}
		if _, err := mail.ParseAddress(d.LeadTraveler.Email); err != nil {
			missing = append(missing, "leadTraveler.email")
		}
		if d.LeadTraveler.Phone == "" {
			missing = append(missing, "leadTraveler.phone")
		}
		if want := d.PartySize() - 1; want > 0 && len(d.Travelers) != want {
			missing = append(missing, fmt.Sprintf("travelers (%d of %d)", len(d.Travelers), want))
		}
		for i, t := range d.Travelers {
			if t.FullName == "" {
				missing = append(missing, fmt.Sprintf("travelers[%d].fullName", i))
			}
		}
	case StepAddOns, StepReview:
	}

	if len(missing) > 0 {
		return &ValidationError{Step: step, Missing: missing}
	}
	return nil
}

// Complete validates every step up to review.
func (d *Draft) Complete() error {
	for step := StepPackage; step < StepReview; step++ {
		if err := d.Validate(step); err != nil {
			return err
		}
	}
	return nil
}

// Next advances one step once the current step validates.
func (d *Draft) Next() error {
	if d.Step == StepReview {
		return ErrLastStep
	}
	if err := d.Validate(d.Step); err != nil {
		return err
	}
	d.Step++
	return nil
}

func (d *Draft) Back() error {
	if d.Step == StepPackage {
		return ErrFirstStep
	}
	d.Step--
	return nil
}

func (d *Draft) recompute() {
	if d.Package == nil {
		d.Totals = Totals{}
		return
	}

	pkg := d.Package
	base := int64(d.Adults)*pkg.AdultPriceMinor + int64(d.Children)*pkg.ChildPriceMinor

	var extras int64
	for _, code := range d.AddOns {
		addOn, ok := pkg.AddOn(code)
		if !ok {
			continue
		}
		if addOn.PerPerson {
			extras += addOn.PriceMinor * int64(d.PartySize())
		} else {
			extras += addOn.PriceMinor
		}
	}

	d.Totals = Totals{
		BaseMinor:   base,
		AddOnsMinor: extras,
		TotalMinor:  base + extras,
		Currency:    pkg.Currency,
	}
}

func (d *Draft) clone() Draft {
	out := *d
	if d.Package != nil {
		pkg := *d.Package
		pkg.AddOns = append([]models.AddOn(nil), d.Package.AddOns...)
		out.Package = &pkg
	}
	out.Travelers = append([]models.Traveler(nil), d.Travelers...)
	out.AddOns = append([]string(nil), d.AddOns...)
	return out
}

func normalizeTraveler(t models.Traveler) models.Traveler {
	t.FullName = strings.TrimSpace(t.FullName)
	t.Email = strings.ToLower(strings.TrimSpace(t.Email))
	t.Phone = strings.TrimSpace(t.Phone)
	t.Passport = strings.ToUpper(strings.TrimSpace(t.Passport))
	return t
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
