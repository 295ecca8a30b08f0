package booking

import (
	"errors"
	"testing"
	"time"

	"travelhub/api/internal/models"
)

var today = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func langkawi() models.Package {
	return models.Package{
		ID:              "pkg-lgk",
		Code:            "LGK3D2N",
		Name:            "Langkawi Island Escape",
		AdultPriceMinor: 125000,
		ChildPriceMinor: 80000,
		Currency:        "MYR",
		MaxGroupSize:    6,
		Active:          true,
		AddOns: []models.AddOn{
			{Code: "cable-car", Name: "SkyCab", PriceMinor: 8500, PerPerson: true},
			{Code: "transfer", Name: "Airport transfer", PriceMinor: 12000},
		},
	}
}

func TestDraftStepGates(t *testing.T) {
	var d Draft

	if err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("next without package: %v", err)
	}
	if d.Step != StepPackage {
		t.Fatalf("step advanced to %s", d.Step)
	}

	if err := d.SelectPackage(langkawi()); err != nil {
		t.Fatal(err)
	}
	if err := d.Next(); err != nil {
		t.Fatal(err)
	}

	err := d.Next()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Step != StepSchedule {
		t.Fatalf("schedule gate: %v", err)
	}
	if len(verr.Missing) != 2 {
		t.Fatalf("missing = %v", verr.Missing)
	}

	if err := d.SetSchedule(today.AddDate(0, 1, 0), 2, 1, today); err != nil {
		t.Fatal(err)
	}
	if err := d.Next(); err != nil {
		t.Fatal(err)
	}

	d.SetTravelers(models.Traveler{FullName: "Aina Rahman", Email: "aina@x.my", Phone: "+60123"}, nil)
	if err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("travelers gate with missing companions: %v", err)
	}
	d.SetTravelers(
		models.Traveler{FullName: "Aina Rahman", Email: "aina@x.my", Phone: "+60123"},
		[]models.Traveler{{FullName: "Hakim"}, {FullName: "Sofia", Child: true}},
	)
	if err := d.Next(); err != nil {
		t.Fatal(err)
	}

	// add-ons are optional
	if err := d.Next(); err != nil {
		t.Fatal(err)
	}
	if d.Step != StepReview {
		t.Fatalf("step = %s", d.Step)
	}
	if err := d.Next(); !errors.Is(err, ErrLastStep) {
		t.Fatalf("next at review: %v", err)
	}
	if err := d.Complete(); err != nil {
		t.Fatal(err)
	}
}

func TestGroupSizeCheckedAfterPackageChoice(t *testing.T) {
	var d Draft
	if err := d.SetSchedule(today.AddDate(0, 1, 0), 10, 0, today); err != nil {
		t.Fatal(err)
	}
	if err := d.SelectPackage(langkawi()); err != nil {
		t.Fatal(err)
	}

	err := d.Complete()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Step != StepSchedule {
		t.Fatalf("complete with party of 10 on a 6-seat package: %v", err)
	}

	d.Step = StepSchedule
	if err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("next with oversized party: %v", err)
	}

	if err := d.SetSchedule(today.AddDate(0, 1, 0), 4, 2, today); err != nil {
		t.Fatal(err)
	}
	if err := d.Validate(StepSchedule); err != nil {
		t.Fatalf("party of 6: %v", err)
	}
}

func TestDraftBack(t *testing.T) {
	d := Draft{Step: StepTravelers}
	if err := d.Back(); err != nil || d.Step != StepSchedule {
		t.Fatalf("back: %v, step %s", err, d.Step)
	}
	d.Step = StepPackage
	if err := d.Back(); !errors.Is(err, ErrFirstStep) {
		t.Fatalf("back at first step: %v", err)
	}
}

func TestDraftTotals(t *testing.T) {
	var d Draft
	if err := d.SelectPackage(langkawi()); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSchedule(today.AddDate(0, 0, 7), 2, 1, today); err != nil {
		t.Fatal(err)
	}
	if got, want := d.Totals.TotalMinor, int64(2*125000+80000); got != want {
		t.Fatalf("base total = %d, want %d", got, want)
	}

	if err := d.SetAddOns([]string{"cable-car", "transfer", "cable-car"}); err != nil {
		t.Fatal(err)
	}
	wantExtras := int64(3*8500 + 12000)
	if d.Totals.AddOnsMinor != wantExtras {
		t.Fatalf("add-ons = %d, want %d", d.Totals.AddOnsMinor, wantExtras)
	}
	if d.Totals.TotalMinor != d.Totals.BaseMinor+wantExtras {
		t.Fatalf("total = %+v", d.Totals)
	}
	if d.Totals.Currency != "MYR" {
		t.Fatalf("currency = %q", d.Totals.Currency)
	}

	// totals follow party changes
	if err := d.SetSchedule(d.DepartureDate, 1, 0, today); err != nil {
		t.Fatal(err)
	}
	if got, want := d.Totals.TotalMinor, int64(125000+8500+12000); got != want {
		t.Fatalf("total after change = %d, want %d", got, want)
	}
}

func TestDraftRejectsBadInput(t *testing.T) {
	var d Draft

	inactive := langkawi()
	inactive.Active = false
	if err := d.SelectPackage(inactive); !errors.Is(err, ErrPackageInactive) {
		t.Fatalf("inactive package: %v", err)
	}
	if err := d.SetAddOns([]string{"cable-car"}); !errors.Is(err, ErrUnknownAddOn) {
		t.Fatalf("add-on without package: %v", err)
	}

	if err := d.SelectPackage(langkawi()); err != nil {
		t.Fatal(err)
	}
	if err := d.SetAddOns([]string{"helicopter"}); !errors.Is(err, ErrUnknownAddOn) {
		t.Fatalf("unknown add-on: %v", err)
	}
	if err := d.SetSchedule(today, 2, 0, today); !errors.Is(err, ErrDepartureInPast) {
		t.Fatalf("same-day departure: %v", err)
	}
	if err := d.SetSchedule(today.AddDate(0, 0, 3), 5, 2, today); !errors.Is(err, ErrGroupTooLarge) {
		t.Fatalf("oversized party: %v", err)
	}
}

func TestSelectPackageDropsForeignAddOns(t *testing.T) {
	var d Draft
	if err := d.SelectPackage(langkawi()); err != nil {
		t.Fatal(err)
	}
	if err := d.SetAddOns([]string{"transfer", "cable-car"}); err != nil {
		t.Fatal(err)
	}

	other := langkawi()
	other.ID = "pkg-pen"
	other.AddOns = []models.AddOn{{Code: "transfer", PriceMinor: 9000}}
	if err := d.SelectPackage(other); err != nil {
		t.Fatal(err)
	}
	if len(d.AddOns) != 1 || d.AddOns[0] != "transfer" {
		t.Fatalf("add-ons = %v", d.AddOns)
	}
}
