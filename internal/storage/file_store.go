package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FileStore keeps proofs on the local file system. Used in development and when S3 is unavailable.
type FileStore struct {
	publicURLs
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a store rooted at dir whose objects are served under publicBaseURL.
func NewFileStore(dir, publicBaseURL string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	logger = logger.With().Str("component", "file-store").Logger()
	logger.Info().Str("dir", dir).Str("public_base_url", publicBaseURL).Msg("file store initialised")

	return &FileStore{
		publicURLs: newPublicURLs(publicBaseURL),
		dir:        dir,
		logger:     logger,
	}, nil
}

// Create writes the file with O_EXCL so two writers can never claim the same key.
func (s *FileStore) Create(ctx context.Context, key string, body []byte, contentType string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrObjectExists
		}
		return fmt.Errorf("failed to create %s: %w", key, err)
	}

	if _, err := f.Write(body); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(body)).Str("content_type", contentType).Msg("object stored")

	return nil
}

// Open opens a stored file for reading.
func (s *FileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

// Delete removes a single file.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every file in the prefix's directory whose name starts with the prefix's base name.
func (s *FileStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	path, err := s.path(prefix)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	base := filepath.Base(path)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base) {
			continue
		}
		if err := os.Remove(filepath.Join(filepath.Dir(path), e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to delete %s: %w", e.Name(), err)
		}
		removed++
	}

	return removed, nil
}

// Handler serves the stored files read-only. Directories are reported as missing so
// proof names, and with them tracking codes, cannot be listed.
func (s *FileStore) Handler() http.Handler {
	return http.FileServer(filesOnly{http.Dir(s.dir)})
}

type filesOnly struct {
	http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}

	return file, nil
}

func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}
