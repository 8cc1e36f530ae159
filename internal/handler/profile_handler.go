package handler

import (
	"net/http"

	"storefront/internal/auth"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// ProfileHandler serves the signed-in customer's saved checkout profile.
type ProfileHandler struct {
	service service.ProfileService
	logger  zerolog.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(service service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger.With().Str("handler", "profile").Logger(),
	}
}

// Handle serves GET /profile and PUT /profile.
func (h *ProfileHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		profile, err := h.service.Get(r.Context(), identity)
		if err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)

	case http.MethodPut:
		var req model.CustomerProfile
		if err := decodeJSON(w, r, &req, defaultMaxBodyBytes); err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		profile, err := h.service.Save(r.Context(), identity, &req)
		if err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)

	default:
		methodNotAllowed(w, h.logger, http.MethodGet, http.MethodPut)
	}
}
