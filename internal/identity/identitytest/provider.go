// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/identity"
)

type Provider struct {
	mu        sync.Mutex
	passwords map[string]string
	live      map[string]identity.Session
	seq       int

	hold chan struct{}

	Broker *identity.LocalBroker
}

func NewProvider() *Provider {
	return &Provider{
		passwords: map[string]string{},
		live:      map[string]identity.Session{},
		Broker:    identity.NewLocalBroker(zerolog.Nop()),
	}
}

func (p *Provider) AddIdentity(email, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwords[strings.ToLower(email)] = password
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (identity.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
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

	_ = p.Broker.Publish(ctx, identity.Event{Type: identity.EventSignedIn, SessionID: sess.ID, Email: email, At: time.Now()})
	return sess, nil
}

func (p *Provider) GetSession(ctx context.Context, token string) (identity.Session, error) {
	p.mu.Lock()
	hold := p.hold
	p.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return identity.Session{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.live[token]
	if !ok {
		return identity.Session{}, identity.ErrNoSession
	}
	return sess, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	p.mu.Lock()
	sess, ok := p.live[token]
	delete(p.live, token)
	p.mu.Unlock()

	if !ok {
		return identity.ErrNoSession
	}
	_ = p.Broker.Publish(ctx, identity.Event{Type: identity.EventSignedOut, SessionID: sess.ID, Email: sess.Email, At: time.Now()})
	return nil
}

func (p *Provider) Subscribe(listener identity.Listener) identity.Unsubscribe {
	return p.Broker.Subscribe(listener)
}

// HoldSessions makes GetSession block until ch is closed.
func (p *Provider) HoldSessions(ch chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hold = ch
}

// Live reports the number of sessions not yet signed out.
func (p *Provider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
