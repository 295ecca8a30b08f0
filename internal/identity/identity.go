// Package identity is the authentication collaborator: password sign-in,
// token-backed sessions and auth-state change notifications.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrNoSession          = errors.New("no active session")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakCredentials    = errors.New("email and a password of at least 8 characters are required")
)

type EventType string

const (
	EventSignedIn    EventType = "SIGNED_IN"
	EventSignedOut   EventType = "SIGNED_OUT"
	EventUserUpdated EventType = "USER_UPDATED"
)

type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"sessionId,omitempty"`
	IdentityID string    `json:"identityId,omitempty"`
	Email      string    `json:"email,omitempty"`
	At         time.Time `json:"at"`
}

// Session binds an access token to the identity that signed in.
type Session struct {
	ID          string
	IdentityID  string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

type Listener func(Event)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

type Provider interface {
	GetSession(ctx context.Context, accessToken string) (Session, error)
	SignInWithPassword(ctx context.Context, email string, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Subscribe(listener Listener) Unsubscribe
}

type Broker interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(listener Listener) Unsubscribe
}
