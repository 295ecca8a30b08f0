package booking

import (
	"errors"
	"sync"
	"time"

	"travelhub/api/internal/ids"
)

var (
	ErrDraftNotFound = errors.New("booking draft not found")
	ErrSubmitting    = errors.New("booking draft is being submitted")
)

// Wizards keeps the open drafts of every client. Drafts live only in memory
// and are dropped on discard, submit or sweep.
type Wizards struct {
	mu     sync.Mutex
	drafts map[string]*Draft
	now    func() time.Time
}

func NewWizards() *Wizards {
	return &Wizards{
		drafts: make(map[string]*Draft),
		now:    time.Now,
	}
}

func (w *Wizards) Start(ownerID string) Draft {
	d := &Draft{
		ID:        ids.New(),
		OwnerID:   ownerID,
		Step:      StepPackage,
		UpdatedAt: w.now(),
	}

	w.mu.Lock()
	w.drafts[d.ID] = d
	w.mu.Unlock()
	return d.clone()
}

// With runs fn on the owner's draft under the wizard lock and returns the
// resulting draft. Changes made by fn are kept even when fn returns an error,
// matching a form that keeps what was typed.
func (w *Wizards) With(id, ownerID string, fn func(*Draft) error) (Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, ok := w.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return Draft{}, ErrDraftNotFound
	}
	if d.submitting {
		return d.clone(), ErrSubmitting
	}

	err := fn(d)
	d.UpdatedAt = w.now()
	return d.clone(), err
}

func (w *Wizards) Get(id, ownerID string) (Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, ok := w.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return Draft{}, ErrDraftNotFound
	}
	return d.clone(), nil
}

func (w *Wizards) Discard(id, ownerID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, ok := w.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return false
	}
	delete(w.drafts, id)
	return true
}

// DiscardOwner drops every draft of ownerID, used on logout.
func (w *Wizards) DiscardOwner(ownerID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for id, d := range w.drafts {
		if d.OwnerID == ownerID {
			delete(w.drafts, id)
			n++
		}
	}
	return n
}

// Sweep drops drafts untouched since before idleBefore.
func (w *Wizards) Sweep(idleBefore time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for id, d := range w.drafts {
		if !d.submitting && d.UpdatedAt.Before(idleBefore) {
			delete(w.drafts, id)
			n++
		}
	}
	return n
}

func (w *Wizards) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.drafts)
}

// claim marks the draft as submitting so concurrent submits and edits are
// refused until release or finish.
func (w *Wizards) claim(id, ownerID string) (Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, ok := w.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return Draft{}, ErrDraftNotFound
	}
	if d.submitting {
		return Draft{}, ErrSubmitting
	}
	d.submitting = true
	return d.clone(), nil
}

func (w *Wizards) release(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d, ok := w.drafts[id]; ok {
		d.submitting = false
		d.UpdatedAt = w.now()
	}
}

func (w *Wizards) finish(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.drafts, id)
}
