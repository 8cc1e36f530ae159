package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrObjectExists is returned by Create when the key is already taken.
	ErrObjectExists = errors.New("object already exists")

	// ErrObjectNotFound is returned by Open when no object exists under the key.
	ErrObjectNotFound = errors.New("object not found")
)

// BlobStore stores payment proof files and exposes them through public URLs.
type BlobStore interface {
	// Create writes body under key only if no object exists there yet.
	Create(ctx context.Context, key string, body []byte, contentType string) error

	// Delete removes a single object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object whose key starts with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// PublicURL returns the URL an object is served from.
	PublicURL(key string) string

	// KeyFromURL maps a public URL back to its key. It reports false for URLs outside the store.
	KeyFromURL(url string) (string, bool)
}

// Opener reads stored objects back.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// publicURLs maps keys to URLs under a fixed base.
type publicURLs struct {
	base string
}

func newPublicURLs(base string) publicURLs {
	return publicURLs{base: strings.TrimRight(base, "/")}
}

func (p publicURLs) PublicURL(key string) string {
	return p.base + "/" + strings.TrimLeft(key, "/")
}

func (p publicURLs) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, p.base+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
