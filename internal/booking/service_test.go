package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/models"
	"travelhub/api/internal/repository"
)

type memPackages struct {
	rows map[string]models.Package
}

func (m memPackages) GetByID(_ context.Context, id string) (models.Package, error) {
	pkg, ok := m.rows[id]
	if !ok {
		return models.Package{}, repository.ErrPackageNotFound
	}
	return pkg, nil
}

func (m memPackages) ListActive(context.Context) ([]models.Package, error) {
	var out []models.Package
	for _, pkg := range m.rows {
		if pkg.Active {
			out = append(out, pkg)
		}
	}
	return out, nil
}

type memBookings struct {
	mu      sync.Mutex
	created []models.Booking
	err     error
}

func (m *memBookings) Create(_ context.Context, b models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, b)
	return nil
}

func newTestService() (*Service, *memBookings) {
	bookings := &memBookings{}
	svc := NewService(
		NewWizards(),
		memPackages{rows: map[string]models.Package{"pkg-lgk": langkawi()}},
		bookings,
		zerolog.Nop(),
	)
	svc.now = func() time.Time { return today }
	return svc, bookings
}

// walk drives a fresh draft through every step up to review.
func walk(t *testing.T, svc *Service, owner string) Draft {
	t.Helper()
	ctx := context.Background()

	d := svc.Start(owner)
	steps := []func() (Draft, error){
		func() (Draft, error) { return svc.SelectPackage(ctx, d.ID, owner, "pkg-lgk") },
		func() (Draft, error) { return svc.Next(d.ID, owner) },
		func() (Draft, error) { return svc.SetSchedule(d.ID, owner, today.AddDate(0, 0, 30), 1, 0) },
		func() (Draft, error) { return svc.Next(d.ID, owner) },
		func() (Draft, error) {
			return svc.SetTravelers(d.ID, owner, models.Traveler{FullName: "Aina", Email: "aina@x.my", Phone: "+60123"}, nil)
		},
		func() (Draft, error) { return svc.Next(d.ID, owner) },
		func() (Draft, error) { return svc.SetAddOns(d.ID, owner, []string{"transfer"}) },
		func() (Draft, error) { return svc.Next(d.ID, owner) },
	}
	for i, step := range steps {
		var err error
		if d, err = step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	return d
}

func TestSubmitPersistsCompleteDraft(t *testing.T) {
	svc, bookings := newTestService()
	d := walk(t, svc, "usr-1")

	if len(bookings.created) != 0 {
		t.Fatal("intermediate steps persisted")
	}

	b, err := svc.Submit(context.Background(), d.ID, "usr-1")
	if err != nil {
		t.Fatal(err)
	}
	if b.TotalMinor != 125000+12000 || b.Currency != "MYR" {
		t.Fatalf("booking totals = %d %s", b.TotalMinor, b.Currency)
	}
	if b.Status != models.BookingStatusPending || b.PaymentStatus != models.PaymentStatusUnpaid {
		t.Fatalf("booking status = %s/%s", b.Status, b.PaymentStatus)
	}
	if b.Number == "" || b.UserID != "usr-1" || b.PackageID != "pkg-lgk" {
		t.Fatalf("booking = %+v", b)
	}
	if len(bookings.created) != 1 {
		t.Fatalf("created %d bookings", len(bookings.created))
	}
	if _, err := svc.Get(d.ID, "usr-1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatal("draft survived submit")
	}
}

func TestSubmitIncompleteDraft(t *testing.T) {
	svc, bookings := newTestService()
	d := svc.Start("usr-1")

	if _, err := svc.Submit(context.Background(), d.ID, "usr-1"); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("submit empty draft: %v", err)
	}
	if len(bookings.created) != 0 {
		t.Fatal("incomplete draft persisted")
	}
	// still editable after a refused submit
	if _, err := svc.SelectPackage(context.Background(), d.ID, "usr-1", "pkg-lgk"); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitRefusesPartyOverSwitchedPackageCap(t *testing.T) {
	svc, bookings := newTestService()
	duo := langkawi()
	duo.ID, duo.Code, duo.MaxGroupSize = "pkg-duo", "DUO2D1N", 2
	svc.packages.(memPackages).rows[duo.ID] = duo

	ctx := context.Background()
	d := walk(t, svc, "usr-1")
	if _, err := svc.SetSchedule(d.ID, "usr-1", today.AddDate(0, 0, 30), 4, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SelectPackage(ctx, d.ID, "usr-1", "pkg-duo"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Submit(ctx, d.ID, "usr-1")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Step != StepSchedule {
		t.Fatalf("submit party of 4 on a 2-seat package: %v", err)
	}
	if len(bookings.created) != 0 {
		t.Fatal("oversized party persisted")
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	svc, bookings := newTestService()
	d := walk(t, svc, "usr-1")
	bookings.err = errors.New("insert failed")

	if _, err := svc.Submit(context.Background(), d.ID, "usr-1"); err == nil {
		t.Fatal("submit succeeded against failing store")
	}
	if _, err := svc.Get(d.ID, "usr-1"); err != nil {
		t.Fatalf("draft lost after failed submit: %v", err)
	}

	bookings.err = nil
	if _, err := svc.Submit(context.Background(), d.ID, "usr-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestDraftsAreOwnerScoped(t *testing.T) {
	svc, _ := newTestService()
	d := svc.Start("usr-1")

	if _, err := svc.Get(d.ID, "usr-2"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("foreign get: %v", err)
	}
	if _, err := svc.SelectPackage(context.Background(), d.ID, "usr-2", "pkg-lgk"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("foreign edit: %v", err)
	}
	if svc.Discard(d.ID, "usr-2") {
		t.Fatal("foreign discard succeeded")
	}
	if !svc.Discard(d.ID, "usr-1") {
		t.Fatal("owner discard failed")
	}
}

func TestSelectUnknownPackage(t *testing.T) {
	svc, _ := newTestService()
	d := svc.Start("usr-1")

	if _, err := svc.SelectPackage(context.Background(), d.ID, "usr-1", "pkg-none"); !errors.Is(err, repository.ErrPackageNotFound) {
		t.Fatalf("unknown package: %v", err)
	}
}

func TestWizardSweepAndDiscardOwner(t *testing.T) {
	w := NewWizards()
	clock := today
	w.now = func() time.Time { return clock }

	w.Start("usr-1")
	w.Start("usr-1")
	kept := w.Start("usr-2")

	if n := w.DiscardOwner("usr-1"); n != 2 {
		t.Fatalf("discarded %d drafts", n)
	}

	clock = today.Add(2 * time.Hour)
	fresh := w.Start("usr-3")

	if n := w.Sweep(today.Add(time.Hour)); n != 1 {
		t.Fatalf("swept %d drafts, want 1", n)
	}
	if _, err := w.Get(kept.ID, "usr-2"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatal("idle draft survived sweep")
	}
	if _, err := w.Get(fresh.ID, "usr-3"); err != nil {
		t.Fatal("fresh draft swept")
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(&ValidationError{Step: StepSchedule, Missing: []string{"adults"}}) {
		t.Fatal("validation error not a client error")
	}
	if IsClientError(errors.New("db down")) {
		t.Fatal("db error classified as client error")
	}
}
