package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"storefront/internal/model"
)

// Source opens catalog files by name.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, name string) (io.ReadCloser, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return f(ctx, name)
}

// LocalFiles opens names as paths on the local file system.
func LocalFiles() Source {
	return SourceFunc(func(ctx context.Context, name string) (io.ReadCloser, error) {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog file %s: %w", name, err)
		}
		return f, nil
	})
}

// Loader reads product and shipping rule files.
type Loader interface {
	// LoadProducts parses a products file. Columns: id, name, price, stock and optionally sku, active.
	LoadProducts(ctx context.Context, name string) ([]model.Product, error)

	// LoadShippingRules parses a shipping rules file. Columns: country, state, city, base_cost and optionally is_free.
	LoadShippingRules(ctx context.Context, name string) ([]model.ShippingRule, error)
}

// ErrInvalidFile is wrapped by every parse failure.
var ErrInvalidFile = errors.New("invalid catalog file")
