// Package session holds the per-client session context: who is signed in,
// mirrored from the identity provider and the profile table.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/identity"
	"travelhub/api/internal/models"
	"travelhub/api/internal/repository"
	"travelhub/api/internal/roles"
)

type ProfileFinder interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

type FailureReason string

const (
	ReasonNone               FailureReason = ""
	ReasonInvalidCredentials FailureReason = "invalid_credentials"
	ReasonProfileNotFound    FailureReason = "profile_not_found"
	ReasonInactive           FailureReason = "account_inactive"
	ReasonUnexpected         FailureReason = "unexpected_error"
)

const (
	MessageProfileNotFound = "User profile not found. Please contact an administrator."
	MessageInactive        = "Your account is inactive. Please contact an administrator."
	MessageUnexpected      = "An unexpected error occurred. Please try again."
)

const signOutTimeout = 5 * time.Second

type LoginResult struct {
	Success bool
	Message string
	Reason  FailureReason
	User    *models.User
}

func failure(reason FailureReason, message string) LoginResult {
	return LoginResult{Reason: reason, Message: message}
}

// Store is the explicitly constructed session context of one client. It is
// safe for concurrent use.
type Store struct {
	auth     identity.Provider
	profiles ProfileFinder
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	user     *models.User
	sess     *identity.Session
	loading  bool
	closed   bool
	gen      uint64
	lastUsed time.Time
	// checkedAt is when session and profile were last confirmed at the source.
	checkedAt time.Time

	unsubscribe identity.Unsubscribe
	closeOnce   sync.Once
}

// New creates a store and subscribes it to auth-state events. Close must be
// called to release the subscription.
func New(auth identity.Provider, profiles ProfileFinder, log zerolog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		auth:      auth,
		profiles:  profiles,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		lastUsed:  time.Now(),
		checkedAt: time.Now(),
	}
	s.unsubscribe = auth.Subscribe(s.handleEvent)
	return s
}

// Init restores the session behind accessToken, if the provider still knows
// it. The store reports Loading until Init returns.
func (s *Store) Init(ctx context.Context, accessToken string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = true
	gen := s.gen
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	sess, err := s.auth.GetSession(ctx, accessToken)
	if err != nil {
		if !errors.Is(err, identity.ErrNoSession) {
			s.log.Error().Err(err).Msg("restore session failed")
		}
		s.commit(gen, nil, nil)
		return
	}

	user, err := s.profiles.FindByEmail(ctx, sess.Email)
	switch {
	case err != nil:
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.log.Error().Err(err).Str("session_id", sess.ID).Msg("restore profile failed")
		}
		s.commit(gen, nil, nil)
	case !user.Active():
		s.log.Info().Str("user_id", user.ID).Msg("restored session belongs to inactive user, signing out")
		if s.commit(gen, nil, nil) {
			s.signOutQuietly(ctx, sess.AccessToken)
		}
	default:
		s.commit(gen, &sess, &user)
	}
}

// Login signs in with the identity provider and commits the matching profile.
// On every failure path the provider token is released again, so a store
// never holds a token without an active profile.
func (s *Store) Login(ctx context.Context, email string, password string) LoginResult {
	email = strings.TrimSpace(strings.ToLower(email))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return failure(ReasonUnexpected, MessageUnexpected)
	}
	// supersede any profile fetch still in flight
	s.gen++
	s.mu.Unlock()

	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return failure(ReasonInvalidCredentials, capitalize(err.Error()))
		}
		s.log.Error().Err(err).Msg("sign in failed")
		return failure(ReasonUnexpected, MessageUnexpected)
	}

	user, err := s.profiles.FindByEmail(ctx, sess.Email)
	if err != nil {
		s.signOutQuietly(ctx, sess.AccessToken)
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Warn().Str("email", sess.Email).Msg("authenticated identity has no profile")
			return failure(ReasonProfileNotFound, MessageProfileNotFound)
		}
		s.log.Error().Err(err).Msg("load profile failed")
		return failure(ReasonUnexpected, MessageUnexpected)
	}

	if !user.Active() {
		s.signOutQuietly(ctx, sess.AccessToken)
		return failure(ReasonInactive, MessageInactive)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.signOutQuietly(ctx, sess.AccessToken)
		return failure(ReasonUnexpected, MessageUnexpected)
	}
	s.gen++
	s.sess = &sess
	s.user = &user
	s.lastUsed = time.Now()
	s.checkedAt = s.lastUsed
	s.mu.Unlock()

	s.log.Info().Str("user_id", user.ID).Str("role", user.Role.String()).Msg("user logged in")

	out := user
	return LoginResult{Success: true, User: &out}
}

// Logout releases the provider session and clears local state. Local state is
// cleared even when the provider call fails.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	sess := s.sess
	s.gen++
	s.sess = nil
	s.user = nil
	s.mu.Unlock()

	if sess != nil {
		s.signOutQuietly(ctx, sess.AccessToken)
	}
}

// Close unregisters the auth-state listener. Events arriving afterwards are
// ignored. Close is idempotent.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Store) Session() (identity.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return identity.Session{}, false
	}
	return *s.sess, true
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// HasRole reports whether the current user holds any of the given roles.
func (s *Store) HasRole(candidates ...roles.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return false
	}
	return s.user.Role.In(candidates...)
}

// Snapshot returns loading flag and user under one lock so callers never see
// a user from one state paired with the loading flag of another.
func (s *Store) Snapshot() (loading bool, user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return s.loading, user
}

func (s *Store) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

func (s *Store) expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess != nil && !s.sess.ExpiresAt.After(now)
}

// commit applies a fetch result when no newer write happened since gen was
// read. It reports whether the result was applied.
func (s *Store) commit(gen uint64, sess *identity.Session, user *models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		return false
	}
	s.gen++
	s.sess = sess
	s.user = user
	s.checkedAt = time.Now()
	return true
}

func (s *Store) handleEvent(event identity.Event) {
	s.mu.RLock()
	closed := s.closed
	sess := s.sess
	var email string
	if s.user != nil {
		email = s.user.Email
	}
	gen := s.gen
	s.mu.RUnlock()

	if closed || sess == nil {
		return
	}

	switch event.Type {
	case identity.EventSignedOut:
		if event.SessionID == sess.ID {
			s.commit(gen, nil, nil)
		}
	case identity.EventSignedIn:
		if event.SessionID == sess.ID {
			s.refreshProfile(s.ctx, gen, *sess)
		}
	case identity.EventUserUpdated:
		if event.Email != "" && event.Email == email {
			s.refreshProfile(s.ctx, gen, *sess)
		}
	}
}

// Revalidate re-reads the session and profile behind the store, covering
// auth events that never arrived. A revoked session or an inactive profile
// clears the store; transient errors keep the current state.
func (s *Store) Revalidate(ctx context.Context) {
	s.mu.RLock()
	sess, gen, closed := s.sess, s.gen, s.closed
	s.mu.RUnlock()
	if closed || sess == nil {
		return
	}

	if _, err := s.auth.GetSession(ctx, sess.AccessToken); err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			s.log.Info().Str("session_id", sess.ID).Msg("session no longer exists, clearing store")
			s.commit(gen, nil, nil)
			return
		}
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("revalidate session failed")
		return
	}
	s.refreshProfile(ctx, gen, *sess)
}

// dueForCheck reports whether the store was last confirmed more than every
// ago, and if so claims the check so concurrent callers skip it.
func (s *Store) dueForCheck(now time.Time, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.loading || s.sess == nil || now.Sub(s.checkedAt) < every {
		return false
	}
	s.checkedAt = now
	return true
}

func (s *Store) refreshProfile(ctx context.Context, gen uint64, sess identity.Session) {
	user, err := s.profiles.FindByEmail(ctx, sess.Email)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Warn().Str("session_id", sess.ID).Msg("profile disappeared, signing out")
			if s.commit(gen, nil, nil) {
				s.signOutQuietly(ctx, sess.AccessToken)
			}
			return
		}
		s.log.Error().Err(err).Str("session_id", sess.ID).Msg("refresh profile failed")
		return
	}

	if !user.Active() {
		s.log.Info().Str("user_id", user.ID).Msg("user deactivated, signing out")
		if s.commit(gen, nil, nil) {
			s.signOutQuietly(ctx, sess.AccessToken)
		}
		return
	}

	s.commit(gen, &sess, &user)
}

// signOutQuietly releases accessToken at the provider. It runs detached from
// ctx's cancellation so an aborted request still leaves no token behind.
func (s *Store) signOutQuietly(ctx context.Context, accessToken string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutTimeout)
	defer cancel()
	if err := s.auth.SignOut(ctx, accessToken); err != nil && !errors.Is(err, identity.ErrNoSession) {
		s.log.Error().Err(err).Msg("sign out failed")
	}
}

func capitalize(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
