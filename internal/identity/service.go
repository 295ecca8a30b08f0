package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/config"
	"travelhub/api/internal/ids"
	"travelhub/api/internal/models"
	"travelhub/api/internal/repository"
	"travelhub/api/internal/security"
)

type IdentityStore interface {
	Create(ctx context.Context, identity models.Identity) error
	FindByEmail(ctx context.Context, email string) (models.Identity, error)
	UpdatePassword(ctx context.Context, email string, passwordHash []byte) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	CountByIdentity(ctx context.Context, identityID string) (int, error)
	DeleteOldestSessions(ctx context.Context, identityID string, keepLatest int) ([]string, error)
	DeleteExpired(ctx context.Context) ([]models.Session, error)
	ListByIdentity(ctx context.Context, identityID string) ([]models.Session, error)
	Touch(ctx context.Context, sessionID string, ip string, userAgent string) error
}

// Service is the Postgres-backed Provider.
type Service struct {
	identities IdentityStore
	sessions   SessionStore
	broker     Broker
	cfg        config.SecurityConfig
	log        zerolog.Logger
}

func NewService(identities IdentityStore, sessions SessionStore, broker Broker, cfg config.SecurityConfig, log zerolog.Logger) *Service {
	return &Service{
		identities: identities,
		sessions:   sessions,
		broker:     broker,
		cfg:        cfg,
		log:        log,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *Service) SignInWithPassword(ctx context.Context, email string, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find identity: %w", err)
	}

	ok, err := security.VerifyPassword(password, identity.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("identity_id", identity.ID).Msg("stored password hash unreadable")
		return Session{}, ErrInvalidCredentials
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	s.upgradeLegacyHash(ctx, identity, password)

	sessionID := ids.New()
	token, expiresAt, err := security.GenerateAccessToken(
		s.cfg.JWTAccessSecret,
		identity.ID,
		sessionID,
		identity.Email,
		s.cfg.JWTAccessTTL,
	)
	if err != nil {
		return Session{}, err
	}

	if err := s.sessions.Create(ctx, models.Session{
		ID:         sessionID,
		IdentityID: identity.ID,
		Email:      identity.Email,
		ExpiresAt:  expiresAt,
	}); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	if err := s.enforceSessionLimit(ctx, identity); err != nil {
		s.log.Warn().Err(err).Str("identity_id", identity.ID).Msg("enforce session limit failed")
	}

	s.publish(ctx, Event{Type: EventSignedIn, SessionID: sessionID, IdentityID: identity.ID, Email: identity.Email})

	return Session{
		ID:          sessionID,
		IdentityID:  identity.ID,
		Email:       identity.Email,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) enforceSessionLimit(ctx context.Context, identity models.Identity) error {
	if s.cfg.MaxSessions <= 0 {
		return nil
	}

	count, err := s.sessions.CountByIdentity(ctx, identity.ID)
	if err != nil {
		return err
	}
	if count <= s.cfg.MaxSessions {
		return nil
	}

	removed, err := s.sessions.DeleteOldestSessions(ctx, identity.ID, s.cfg.MaxSessions)
	if err != nil {
		return err
	}
	for _, id := range removed {
		s.publish(ctx, Event{Type: EventSignedOut, SessionID: id, IdentityID: identity.ID, Email: identity.Email})
	}
	return nil
}

func (s *Service) GetSession(ctx context.Context, accessToken string) (Session, error) {
	if accessToken == "" {
		return Session{}, ErrNoSession
	}

	claims, err := security.ParseAccessToken(accessToken, s.cfg.JWTAccessSecret)
	if err != nil {
		return Session{}, ErrNoSession
	}

	row, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	if row.IdentityID != claims.IdentityID || row.Expired(time.Now()) {
		return Session{}, ErrNoSession
	}

	return Session{
		ID:          row.ID,
		IdentityID:  row.IdentityID,
		Email:       row.Email,
		AccessToken: accessToken,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// SignOut releases the session behind accessToken. Signing out an already
// released session succeeds.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := security.ParseAccessTokenIgnoringExpiry(accessToken, s.cfg.JWTAccessSecret)
	if err != nil {
		return ErrNoSession
	}

	if err := s.sessions.DeleteByID(ctx, claims.SessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}

	s.publish(ctx, Event{Type: EventSignedOut, SessionID: claims.SessionID, IdentityID: claims.IdentityID, Email: claims.Email})
	return nil
}

func (s *Service) Subscribe(listener Listener) Unsubscribe {
	return s.broker.Subscribe(listener)
}

// CreateIdentity registers credentials for email.
func (s *Service) CreateIdentity(ctx context.Context, email string, password string) (models.Identity, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 8 {
		return models.Identity{}, ErrWeakCredentials
	}

	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return models.Identity{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrIdentityNotFound) {
		return models.Identity{}, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return models.Identity{}, err
	}

	identity := models.Identity{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return models.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return identity, nil
}

// ExpireSessions drops expired sessions and announces each as signed out.
func (s *Service) ExpireSessions(ctx context.Context) (int, error) {
	expired, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	for _, row := range expired {
		s.publish(ctx, Event{Type: EventSignedOut, SessionID: row.ID, IdentityID: row.IdentityID, Email: row.Email})
	}
	return len(expired), nil
}

func (s *Service) ListSessions(ctx context.Context, identityID string) ([]models.Session, error) {
	return s.sessions.ListByIdentity(ctx, identityID)
}

// RevokeSession signs out one of identityID's sessions. Sessions of other
// identities are reported as not found.
func (s *Service) RevokeSession(ctx context.Context, identityID string, sessionID string) error {
	row, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrNoSession
		}
		return err
	}
	if row.IdentityID != identityID {
		return ErrNoSession
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	s.publish(ctx, Event{Type: EventSignedOut, SessionID: sessionID, IdentityID: identityID, Email: row.Email})
	return nil
}

// TouchSession records client activity on a session row.
func (s *Service) TouchSession(ctx context.Context, sessionID string, ip string, userAgent string) error {
	return s.sessions.Touch(ctx, sessionID, ip, userAgent)
}

// NotifyUserUpdated tells live sessions of email to reload the profile.
func (s *Service) NotifyUserUpdated(ctx context.Context, email string) {
	s.publish(ctx, Event{Type: EventUserUpdated, Email: normalizeEmail(email)})
}

func (s *Service) publish(ctx context.Context, event Event) {
	event.At = time.Now().UTC()
	if err := s.broker.Publish(ctx, event); err != nil {
		s.log.Error().Err(err).Str("event", string(event.Type)).Msg("publish auth event failed")
	}
}

// upgradeLegacyHash replaces an imported bcrypt hash with argon2id once the
// plain password is known. Failures keep the old hash.
func (s *Service) upgradeLegacyHash(ctx context.Context, identity models.Identity, password string) {
	if !security.IsLegacyHash(identity.PasswordHash) {
		return
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		s.log.Warn().Err(err).Str("identity_id", identity.ID).Msg("rehash legacy password failed")
		return
	}
	if err := s.identities.UpdatePassword(ctx, identity.Email, hash); err != nil {
		s.log.Warn().Err(err).Str("identity_id", identity.ID).Msg("store upgraded password hash failed")
		return
	}
	s.log.Info().Str("identity_id", identity.ID).Msg("legacy password hash upgraded")
}
