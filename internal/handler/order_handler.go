package handler

import (
	"net/http"

	"storefront/internal/auth"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service      service.OrderService
	maxProofBody int64
	logger       zerolog.Logger
}

// NewOrderHandler creates a new order handler. maxProofBytes bounds the decoded proof size and is used to size
// the proof request body limit.
func NewOrderHandler(service service.OrderService, maxProofBytes int, logger zerolog.Logger) *OrderHandler {
	// base64 expands by 4/3; leave room for the other fields.
	limit := int64(maxProofBytes)*4/3 + 64<<10
	if limit < defaultMaxBodyBytes {
		limit = defaultMaxBodyBytes
	}

	return &OrderHandler{
		service:      service,
		maxProofBody: limit,
		logger:       logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, h.logger, http.MethodPost)
		return
	}

	var req model.CreateOrderRequest
	if err := decodeJSON(w, r, &req, defaultMaxBodyBytes); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	result, err := h.service.CreateOrder(r.Context(), &req, auth.FromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UploadProof handles POST /orders/proof requests. Bodies with file_data are stored; bodies with only
// payment_proof_url attach an already stored file.
func (h *OrderHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, h.logger, http.MethodPost)
		return
	}

	var req model.UploadProofRequest
	if err := decodeJSON(w, r, &req, h.maxProofBody); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	var (
		result *model.ProofResult
		err    error
	)
	if req.FileData != "" {
		result, err = h.service.UploadProof(r.Context(), &req)
	} else {
		result, err = h.service.AttachProof(r.Context(), &req)
	}
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Cancel handles POST /orders/cancel requests.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, h.logger, http.MethodPost)
		return
	}

	var req model.CancelOrderRequest
	if err := decodeJSON(w, r, &req, defaultMaxBodyBytes); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := h.service.CancelOrder(r.Context(), req.OrderID, auth.FromContext(r.Context())); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Track handles GET /orders/track?tracking_code= and POST /orders/track requests.
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req model.TrackOrderRequest

	switch r.Method {
	case http.MethodGet:
		req.TrackingCode = r.URL.Query().Get("tracking_code")
	case http.MethodPost:
		if err := decodeJSON(w, r, &req, defaultMaxBodyBytes); err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
	default:
		methodNotAllowed(w, h.logger, http.MethodGet, http.MethodPost)
		return
	}

	view, err := h.service.Track(r.Context(), req.TrackingCode)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// History handles GET /orders/history requests.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, http.MethodGet)
		return
	}

	orders, err := h.service.History(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}
