package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// ProductHandler serves the read-only catalog used during cart review.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// List handles GET /products?limit=&offset=&in_stock=&q=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, http.MethodGet)
		return
	}

	q, err := parseProductQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	products, err := h.service.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /products/{id}.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, http.MethodGet)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/products/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "product ID is required", nil, h.logger)
		return
	}

	product, err := h.service.GetByID(r.Context(), id)
	if errors.Is(err, model.ErrProductNotFound) {
		// Unknown ids are a 404 here, unlike inside an order where they fail validation.
		writeError(w, http.StatusNotFound, model.ErrCodeProductNotFound, "product not found", nil, h.logger)
		return
	}
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func parseProductQuery(values url.Values) (model.ProductQuery, error) {
	q := model.ProductQuery{Search: values.Get("q")}

	ints := []struct {
		name string
		dst  *int
	}{
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	}
	for _, p := range ints {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, model.NewValidationError("invalid %s parameter", p.name)
		}
		*p.dst = v
	}

	if raw := values.Get("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, model.NewValidationError("invalid in_stock parameter")
		}
		q.InStock = v
	}

	return q, nil
}
