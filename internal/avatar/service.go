// Package avatar stores profile pictures in object storage.
package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/config"
	"travelhub/api/internal/ids"
	"travelhub/api/internal/models"
)

const defaultMaxBytes = 2 << 20

var (
	ErrEmpty        = errors.New("empty file")
	ErrTooLarge     = errors.New("file too large")
	ErrTypeMismatch = errors.New("declared content type does not match file")
)

// Objects is the slice of the object store used for avatars.
type Objects interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Profiles interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateAvatar(ctx context.Context, id string, avatarKey string) error
}

type UploadInput struct {
	UserID       string
	File         io.Reader
	DeclaredType string
}

type UploadResult struct {
	Key    string
	URL    string
	Format Format
	Size   int64
}

type Service struct {
	objects  Objects
	profiles Profiles
	cfg      config.StorageConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(objects Objects, profiles Profiles, cfg config.StorageConfig, log zerolog.Logger) *Service {
	return &Service{
		objects:  objects,
		profiles: profiles,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Upload validates and stores a new avatar, points the profile at it and
// removes the previous object.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if in.File == nil {
		return UploadResult{}, ErrEmpty
	}

	limit := s.cfg.MaxAvatarBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(in.File, limit+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return UploadResult{}, ErrEmpty
	}
	if int64(len(data)) > limit {
		return UploadResult{}, ErrTooLarge
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	detected, err := Sniff(head)
	if err != nil {
		return UploadResult{}, err
	}
	if in.DeclaredType != "" && in.DeclaredType != "application/octet-stream" && in.DeclaredType != detected.MIME {
		return UploadResult{}, fmt.Errorf("%w: declared %s, actual %s", ErrTypeMismatch, in.DeclaredType, detected.MIME)
	}

	if detected.Format == FormatSVG {
		data, err = SanitizeSVG(data)
		if err != nil {
			return UploadResult{}, err
		}
	}

	user, err := s.profiles.GetByID(ctx, in.UserID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("load profile: %w", err)
	}

	key := s.objectKey(in.UserID, detected.Ext())
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), detected.MIME); err != nil {
		return UploadResult{}, fmt.Errorf("put object: %w", err)
	}

	if err := s.profiles.UpdateAvatar(ctx, in.UserID, key); err != nil {
		if rmErr := s.objects.Remove(ctx, key); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("key", key).Msg("remove orphaned avatar failed")
		}
		return UploadResult{}, fmt.Errorf("save avatar: %w", err)
	}

	if user.AvatarKey != nil && *user.AvatarKey != "" && *user.AvatarKey != key {
		if err := s.objects.Remove(ctx, *user.AvatarKey); err != nil {
			s.log.Warn().Err(err).Str("key", *user.AvatarKey).Msg("remove previous avatar failed")
		}
	}

	url, err := s.URL(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("presign avatar failed")
	}

	return UploadResult{Key: key, URL: url, Format: detected.Format, Size: int64(len(data))}, nil
}

// URL returns a time-limited download link for an avatar key.
func (s *Service) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.objects.PresignGet(ctx, key, s.cfg.AvatarURLTTL)
}

func (s *Service) objectKey(userID string, ext string) string {
	return path.Join("avatars", userID, s.now().UTC().Format("20060102"), fmt.Sprintf("%s.%s", ids.New(), ext))
}
