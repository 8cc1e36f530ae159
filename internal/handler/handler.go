package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 20

// internalErrorDetails tells clients that a failed write may still have happened.
const internalErrorDetails = "unexpected failure; check order state before retrying"

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and code.
func writeError(w http.ResponseWriter, status int, code, message string, details any, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", message).Str("code", code).Int("status", status).Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{Error: message, Code: code, Details: details})
}

// writeServiceError maps domain errors to their status codes. Anything else is a 500 with a generic body.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		writeError(w, statusFor(domainErr.Code), domainErr.Code, domainErr.Message, domainErr.Details, logger)
		return
	}

	logger.Error().Err(err).Msg("unexpected service failure")
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error:   "internal server error",
		Code:    model.ErrCodeInternalError,
		Details: internalErrorDetails,
	})
}

func statusFor(code string) int {
	switch code {
	case model.ErrCodeOrderNotFound, model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthorised:
		return http.StatusForbidden
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case model.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// methodNotAllowed writes a 405 advertising the allowed methods.
func methodNotAllowed(w http.ResponseWriter, logger zerolog.Logger, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", nil, logger)
}

// decodeJSON reads a single JSON object of at most maxBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return model.NewDomainError(model.ErrCodeValidation, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return model.NewDomainError(model.ErrCodeInvalidJSON, "request body is empty")
		default:
			return model.NewDomainError(model.ErrCodeInvalidJSON, "invalid request body")
		}
	}

	if dec.More() {
		return model.NewDomainError(model.ErrCodeInvalidJSON, "request body must contain a single JSON object")
	}

	return nil
}
