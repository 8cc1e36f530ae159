package catalog

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// gzipMagic is the two-byte gzip header.
var gzipMagic = []byte{0x1f, 0x8b}

// decompress returns r unchanged unless it starts with a gzip header.
func decompress(r io.Reader) (io.Reader, func() error, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read catalog header: %w", err)
	}
	if len(head) < len(gzipMagic) || head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		return br, func() error { return nil }, nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return gz, gz.Close, nil
}

// table is a CSV file with a header row. Columns are looked up by name.
type table struct {
	reader  *csv.Reader
	columns map[string]int
	line    int
}

func newTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrInvalidFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidFile, name)
		}
	}

	return &table{reader: reader, columns: columns}, nil
}

// next returns the following record, or nil at the end of the file.
func (t *table) next() ([]string, error) {
	record, err := t.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	t.line, _ = t.reader.FieldPos(0)
	return record, nil
}

func (t *table) get(record []string, column string) string {
	i, ok := t.columns[column]
	if !ok {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (t *table) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidFile, t.line, fmt.Sprintf(format, args...))
}

func (t *table) amount(record []string, column string) (decimal.Decimal, error) {
	raw := t.get(record, column)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, t.errorf("%s %q is not a number", column, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, t.errorf("%s must not be negative", column)
	}
	return d.Round(2), nil
}

func (t *table) flag(record []string, column string, fallback bool) (bool, error) {
	raw := t.get(record, column)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, t.errorf("%s %q is not a boolean", column, raw)
	}
	return b, nil
}

// ParseProducts reads a products CSV, gzipped or plain.
func ParseProducts(r io.Reader) ([]model.Product, error) {
	body, closeFn, err := decompress(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	t, err := newTable(body, "id", "name", "price", "stock")
	if err != nil {
		return nil, err
	}

	products := []model.Product{}
	seen := make(map[string]struct{})
	for {
		record, err := t.next()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return products, nil
		}

		p := model.Product{
			ID:   t.get(record, "id"),
			Name: t.get(record, "name"),
			SKU:  t.get(record, "sku"),
		}
		if p.ID == "" || p.Name == "" {
			return nil, t.errorf("id and name are required")
		}
		if _, dup := seen[p.ID]; dup {
			return nil, t.errorf("duplicate product %s", p.ID)
		}
		seen[p.ID] = struct{}{}

		if p.Price, err = t.amount(record, "price"); err != nil {
			return nil, err
		}
		stock, convErr := strconv.Atoi(t.get(record, "stock"))
		if convErr != nil || stock < 0 {
			return nil, t.errorf("stock must be a non-negative integer")
		}
		p.Stock = stock
		if p.IsActive, err = t.flag(record, "active", true); err != nil {
			return nil, err
		}

		products = append(products, p)
	}
}

// ParseShippingRules reads a shipping rules CSV, gzipped or plain.
func ParseShippingRules(r io.Reader) ([]model.ShippingRule, error) {
	body, closeFn, err := decompress(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	t, err := newTable(body, "country", "state", "city", "base_cost")
	if err != nil {
		return nil, err
	}

	rules := []model.ShippingRule{}
	seen := make(map[model.Destination]struct{})
	for {
		record, err := t.next()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return rules, nil
		}

		rule := model.ShippingRule{
			Country: t.get(record, "country"),
			State:   t.get(record, "state"),
			City:    t.get(record, "city"),
		}
		if rule.Country == "" || rule.State == "" || rule.City == "" {
			return nil, t.errorf("destination is incomplete")
		}
		dest := model.Destination{Country: rule.Country, State: rule.State, City: rule.City}
		if _, dup := seen[dest]; dup {
			return nil, t.errorf("duplicate rule for %s/%s/%s", rule.Country, rule.State, rule.City)
		}
		seen[dest] = struct{}{}

		if rule.BaseCost, err = t.amount(record, "base_cost"); err != nil {
			return nil, err
		}
		if rule.IsFree, err = t.flag(record, "is_free", false); err != nil {
			return nil, err
		}
		if rule.IsFree {
			rule.BaseCost = decimal.Zero
		}

		rules = append(rules, rule)
	}
}
