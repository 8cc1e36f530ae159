package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/auth"

	"github.com/rs/zerolog/hlog"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Authorization", "Content-Type", "X-Client-Info", "Apikey", apiKeyHeader}, ", ")
)

const apiKeyHeader = "X-API-Key"

// Paths reachable without the gateway key.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// CORS allows any origin and answers preflight requests itself.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Expose-Headers", requestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// APIKeyAuth requires the gateway key in X-API-Key or Apikey. An empty apiKey disables the check.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		want := []byte(apiKey)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(apiKeyHeader)
			if got == "" {
				got = r.Header.Get("Apikey")
			}

			var reason string
			switch {
			case got == "":
				reason = "missing API key"
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				reason = "invalid API key"
			default:
				next.ServeHTTP(w, r)
				return
			}

			hlog.FromRequest(r).Warn().Str("path", r.URL.Path).Msg(reason)
			writeJSONError(w, http.StatusUnauthorized, "unauthorised: "+reason)
		})
	}
}

// Authenticate puts the bearer token's identity on the request context.
// Requests without a usable token carry on as guests.
func Authenticate(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r)
			if err == nil {
				identity, verr := verifier.Verify(r.Context(), token)
				if verr == nil {
					ctx := auth.WithIdentity(r.Context(), identity)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				err = verr
			}

			if !errors.Is(err, auth.ErrNoToken) {
				hlog.FromRequest(r).Debug().Err(err).Str("path", r.URL.Path).Msg("treating request as guest")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recovery turns a handler panic into a 500 JSON response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			hlog.FromRequest(r).Error().
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("panic recovered")

			writeJSONError(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	code := "INTERNAL_ERROR"
	if status == http.StatusUnauthorized {
		code = "UNAUTHENTICATED"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
