package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// ShippingHandler serves shipping quotes for the checkout address form.
type ShippingHandler struct {
	service service.ShippingService
	logger  zerolog.Logger
}

// NewShippingHandler creates a new shipping handler.
func NewShippingHandler(service service.ShippingService, logger zerolog.Logger) *ShippingHandler {
	return &ShippingHandler{
		service: service,
		logger:  logger.With().Str("handler", "shipping").Logger(),
	}
}

// Quote handles POST /shipping/quote requests.
func (h *ShippingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, h.logger, http.MethodPost)
		return
	}

	var dest model.Destination
	if err := decodeJSON(w, r, &dest, defaultMaxBodyBytes); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	quote, err := h.service.Quote(r.Context(), dest)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}
