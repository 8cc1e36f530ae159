package catalog

import (
	"context"
	"fmt"
	"io"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

type loader struct {
	source Source
	logger zerolog.Logger
}

// NewLoader creates a loader reading from source.
func NewLoader(source Source, logger zerolog.Logger) Loader {
	return &loader{
		source: source,
		logger: logger.With().Str("component", "catalog-loader").Logger(),
	}
}

// LoadProducts opens and parses a products file.
func (l *loader) LoadProducts(ctx context.Context, name string) ([]model.Product, error) {
	var products []model.Product
	err := l.read(ctx, name, func(r io.Reader) (err error) {
		products, err = ParseProducts(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().Str("file", name).Int("products_loaded", len(products)).Msg("products file loaded")
	return products, nil
}

// LoadShippingRules opens and parses a shipping rules file.
func (l *loader) LoadShippingRules(ctx context.Context, name string) ([]model.ShippingRule, error) {
	var rules []model.ShippingRule
	err := l.read(ctx, name, func(r io.Reader) (err error) {
		rules, err = ParseShippingRules(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().Str("file", name).Int("rules_loaded", len(rules)).Msg("shipping rules file loaded")
	return rules, nil
}

func (l *loader) read(ctx context.Context, name string, parse func(io.Reader) error) error {
	l.logger.Info().Str("file", name).Msg("loading catalog file")

	body, err := l.source.Open(ctx, name)
	if err != nil {
		l.logger.Error().Err(err).Str("file", name).Msg("failed to open catalog file")
		return fmt.Errorf("failed to open catalog file %s: %w", name, err)
	}
	defer body.Close()

	if err := parse(body); err != nil {
		l.logger.Error().Err(err).Str("file", name).Msg("failed to parse catalog file")
		return fmt.Errorf("failed to parse catalog file %s: %w", name, err)
	}
	return nil
}

// fallbackSource tries the object store first, then the local file system.
type fallbackSource struct {
	remote Source
	local  Source
	prefix string
	logger zerolog.Logger
}

// NewFallbackSource reads prefix+name from remote and falls back to name on local.
// A nil remote reads local only.
func NewFallbackSource(remote, local Source, prefix string, logger zerolog.Logger) Source {
	return &fallbackSource{
		remote: remote,
		local:  local,
		prefix: prefix,
		logger: logger.With().Str("component", "catalog-source").Logger(),
	}
}

// Open attempts the remote key first.
func (s *fallbackSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.remote != nil {
		key := s.prefix + name

		body, err := s.remote.Open(ctx, key)
		if err == nil {
			s.logger.Info().Str("key", key).Msg("reading catalog file from object store")
			return body, nil
		}

		s.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("failed to open from object store, falling back to local file system")
	}

	return s.local.Open(ctx, name)
}
