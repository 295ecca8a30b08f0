package avatar

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatSVG  Format = "svg"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

type Detected struct {
	Format Format
	MIME   string
}

// Ext returns the object key extension for the format.
func (d Detected) Ext() string {
	if d.Format == FormatJPEG {
		return "jpg"
	}
	return string(d.Format)
}

// Sniff classifies an image by its leading bytes. The declared content type
// of the upload is never trusted.
func Sniff(head []byte) (Detected, error) {
	switch {
	case len(head) == 0:
		return Detected{}, ErrUnsupportedFormat
	case len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff:
		return Detected{Format: FormatJPEG, MIME: "image/jpeg"}, nil
	case bytes.HasPrefix(head, pngMagic):
		return Detected{Format: FormatPNG, MIME: "image/png"}, nil
	case bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a")):
		return Detected{Format: FormatGIF, MIME: "image/gif"}, nil
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return Detected{Format: FormatWEBP, MIME: "image/webp"}, nil
	case looksLikeSVG(head):
		return Detected{Format: FormatSVG, MIME: "image/svg+xml"}, nil
	}
	return Detected{}, ErrUnsupportedFormat
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func looksLikeSVG(head []byte) bool {
	trimmed := strings.ToLower(strings.TrimSpace(string(head)))
	if strings.HasPrefix(trimmed, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg")
}

// DeclaredType returns the media type of a multipart part header without
// parameters.
func DeclaredType(header http.Header) string {
	contentType := header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
