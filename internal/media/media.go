package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

var (
	ErrUpstream   = errors.New("media store request failed")
	ErrInvalidURL = errors.New("invalid media url")
)

// Store is the external object store holding uploaded images. Records keep
// only the returned URL; the content id is derived from it on deletion.
type Store interface {
	Upload(ctx context.Context, file io.Reader, folder, publicID string) (string, error)
	Destroy(ctx context.Context, url string) error
}

// PublicIDFromURL strips the path and the file extension from the last
// segment of a stored URL:
//
//	https://res.cloudinary.com/demo/image/upload/v1712/shop/red_shoe.png -> red_shoe
func PublicIDFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: %q has no file name", ErrInvalidURL, rawURL)
	}

	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", fmt.Errorf("%w: %q has no file name", ErrInvalidURL, rawURL)
	}
	return name, nil
}

// FolderFromURL returns the folder part of a Cloudinary delivery URL, i.e.
// the segments between "upload" (plus an optional version) and the file name.
func FolderFromURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, part := range parts {
		if part != "upload" {
			continue
		}
		rest := parts[i+1:]
		if len(rest) > 0 && isVersion(rest[0]) {
			rest = rest[1:]
		}
		if len(rest) < 2 {
			return ""
		}
		return strings.Join(rest[:len(rest)-1], "/")
	}
	return ""
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
