package models

import (
	"time"

	"travelhub/api/internal/roles"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusInactive
}

// User is the profile row mirrored into a session. It is keyed by ID but
// looked up by email after sign-in.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Phone       string
	AvatarKey   *string
	Role        roles.Role
	Status      UserStatus
	Tier        string
	Bio         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u User) Active() bool {
	return u.Status == UserStatusActive
}

// Identity is a credential row owned by the identity provider.
type Identity struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID         string
	IdentityID string
	Email      string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
