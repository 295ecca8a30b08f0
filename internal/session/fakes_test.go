package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/identity"
	"travelhub/api/internal/models"
	"travelhub/api/internal/repository"
	"travelhub/api/internal/roles"
)

// fakeProvider is an in-memory identity provider keyed by email/password.
type fakeProvider struct {
	mu        sync.Mutex
	passwords map[string]string
	live      map[string]identity.Session
	seq       int
	signInErr error
	signOuts  int
	// strictCtx makes SignOut fail on a done context, like a network call.
	strictCtx bool

	broker *identity.LocalBroker
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		passwords: map[string]string{},
		live:      map[string]identity.Session{},
		broker:    identity.NewLocalBroker(zerolog.Nop()),
	}
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (identity.Session, error) {
	p.mu.Lock()
	if p.signInErr != nil {
		err := p.signInErr
		p.mu.Unlock()
		return identity.Session{}, err
	}
	want, ok := p.passwords[email]
	if !ok || want != password {
		p.mu.Unlock()
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	p.seq++
	sess := identity.Session{
		ID:          fmt.Sprintf("sess-%d", p.seq),
		IdentityID:  "idn-" + email,
		Email:       email,
		AccessToken: fmt.Sprintf("token-%d", p.seq),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	p.live[sess.AccessToken] = sess
	p.mu.Unlock()

	_ = p.broker.Publish(ctx, identity.Event{Type: identity.EventSignedIn, SessionID: sess.ID, Email: email})
	return sess, nil
}

func (p *fakeProvider) GetSession(_ context.Context, token string) (identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.live[token]
	if !ok {
		return identity.Session{}, identity.ErrNoSession
	}
	return sess, nil
}

func (p *fakeProvider) SignOut(ctx context.Context, token string) error {
	p.mu.Lock()
	if p.strictCtx && ctx.Err() != nil {
		p.mu.Unlock()
		return ctx.Err()
	}
	sess, ok := p.live[token]
	delete(p.live, token)
	p.signOuts++
	p.mu.Unlock()

	if !ok {
		return identity.ErrNoSession
	}
	_ = p.broker.Publish(ctx, identity.Event{Type: identity.EventSignedOut, SessionID: sess.ID, Email: sess.Email})
	return nil
}

func (p *fakeProvider) Subscribe(listener identity.Listener) identity.Unsubscribe {
	return p.broker.Subscribe(listener)
}

func (p *fakeProvider) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// fakeProfiles serves profile rows by email. A non-nil gate blocks lookups
// of gateEmail until it is closed.
type fakeProfiles struct {
	mu        sync.Mutex
	rows      map[string]models.User
	err       error
	gate      chan struct{}
	gateEmail string
	calls     int
}

func (f *fakeProfiles) FindByEmail(ctx context.Context, email string) (models.User, error) {
	f.mu.Lock()
	var gate chan struct{}
	if email == f.gateEmail {
		gate = f.gate
	}
	f.calls++
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.User{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.User{}, f.err
	}
	row, ok := f.rows[email]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return row, nil
}

func (f *fakeProfiles) set(user models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[user.Email] = user
}

var errBoom = errors.New("connection reset by peer")

func adminUser() models.User {
	return models.User{
		ID:          "usr-admin",
		Email:       "admin@x.my",
		DisplayName: "Admin",
		Role:        roles.Admin,
		Status:      models.UserStatusActive,
	}
}

func newFixture() (*fakeProvider, *fakeProfiles) {
	provider := newFakeProvider()
	provider.passwords["admin@x.my"] = "correct-password"
	provider.passwords["ghost@x.my"] = "correct-password"
	provider.passwords["sleepy@x.my"] = "correct-password"
	provider.passwords["agent@x.my"] = "correct-password"

	profiles := &fakeProfiles{rows: map[string]models.User{}}
	profiles.set(adminUser())
	profiles.set(models.User{
		ID:     "usr-sleepy",
		Email:  "sleepy@x.my",
		Role:   roles.Customer,
		Status: models.UserStatusInactive,
	})
	profiles.set(models.User{
		ID:     "usr-agent",
		Email:  "agent@x.my",
		Role:   roles.TravelAgent,
		Status: models.UserStatusActive,
	})
	return provider, profiles
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
