package avatar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/config"
	"travelhub/api/internal/models"
	"travelhub/api/internal/repository"
)

type memObjects struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key + "?sig=1", nil
}

type memProfiles struct {
	users map[string]models.User
}

func (m *memProfiles) GetByID(_ context.Context, id string) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *memProfiles) UpdateAvatar(_ context.Context, id string, key string) error {
	user, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.AvatarKey = &key
	m.users[id] = user
	return nil
}

var pngHead = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 32)...)

func newTestService(maxBytes int64) (*Service, *memObjects, *memProfiles) {
	objects := newMemObjects()
	profiles := &memProfiles{users: map[string]models.User{
		"usr-1": {ID: "usr-1", Email: "a@x.my", Status: models.UserStatusActive},
	}}
	svc := NewService(objects, profiles, config.StorageConfig{MaxAvatarBytes: maxBytes}, zerolog.Nop())
	return svc, objects, profiles
}

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want Format
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, FormatJPEG},
		{"png", pngHead, FormatPNG},
		{"gif", []byte("GIF89a......"), FormatGIF},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWEBP},
		{"svg", []byte("  <svg xmlns=\"http://www.w3.org/2000/svg\"></svg>"), FormatSVG},
		{"xml svg", []byte("<?xml version=\"1.0\"?><svg></svg>"), FormatSVG},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sniff(tc.head)
			if err != nil {
				t.Fatalf("sniff: %v", err)
			}
			if got.Format != tc.want {
				t.Fatalf("format = %s, want %s", got.Format, tc.want)
			}
		})
	}

	for _, head := range [][]byte{nil, []byte("%PDF-1.7"), []byte("<?xml version=\"1.0\"?><note/>")} {
		if _, err := Sniff(head); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("sniff(%q) err = %v", head, err)
		}
	}
}

func TestSanitizeSVG(t *testing.T) {
	in := []byte(`<svg onload="alert(1)"><script>alert(2)</script><a xlink:href="javascript:alert(3)"><rect/></a><foreignObject><p>x</p></foreignObject></svg>`)
	out, err := SanitizeSVG(in)
	if err != nil {
		t.Fatal(err)
	}
	for _, bad := range []string{"onload", "<script", "javascript:", "foreignObject"} {
		if strings.Contains(string(out), bad) {
			t.Fatalf("sanitized svg still contains %q: %s", bad, out)
		}
	}
	if !strings.Contains(string(out), "<rect/>") {
		t.Fatalf("sanitize removed content: %s", out)
	}

	if _, err := SanitizeSVG([]byte("<html></html>")); !errors.Is(err, ErrNotSVG) {
		t.Fatalf("err = %v", err)
	}
}

func TestUploadReplacesPreviousAvatar(t *testing.T) {
	svc, objects, profiles := newTestService(1024)
	ctx := context.Background()

	first, err := svc.Upload(ctx, UploadInput{UserID: "usr-1", File: bytes.NewReader(pngHead), DeclaredType: "image/png"})
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if !strings.HasPrefix(first.Key, "avatars/usr-1/") || !strings.HasSuffix(first.Key, ".png") {
		t.Fatalf("key = %q", first.Key)
	}
	if first.URL == "" || objects.types[first.Key] != "image/png" {
		t.Fatalf("result = %+v", first)
	}

	second, err := svc.Upload(ctx, UploadInput{UserID: "usr-1", File: strings.NewReader(`<svg onclick="x()"></svg>`)})
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if _, ok := objects.objects[first.Key]; ok {
		t.Fatal("previous avatar not removed")
	}
	if strings.Contains(string(objects.objects[second.Key]), "onclick") {
		t.Fatal("svg stored unsanitized")
	}
	if got := profiles.users["usr-1"].AvatarKey; got == nil || *got != second.Key {
		t.Fatalf("profile avatar = %v, want %s", got, second.Key)
	}
}

func TestUploadRejects(t *testing.T) {
	cases := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"empty", UploadInput{UserID: "usr-1", File: bytes.NewReader(nil)}, ErrEmpty},
		{"too large", UploadInput{UserID: "usr-1", File: bytes.NewReader(append(pngHead, make([]byte, 64)...))}, ErrTooLarge},
		{"unknown format", UploadInput{UserID: "usr-1", File: strings.NewReader("plain text")}, ErrUnsupportedFormat},
		{"declared mismatch", UploadInput{UserID: "usr-1", File: bytes.NewReader(pngHead), DeclaredType: "image/jpeg"}, ErrTypeMismatch},
		{"unknown user", UploadInput{UserID: "usr-404", File: bytes.NewReader(pngHead)}, repository.ErrUserNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, objects, _ := newTestService(64)
			if _, err := svc.Upload(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if len(objects.objects) != 0 {
				t.Fatal("rejected upload stored an object")
			}
		})
	}
}
