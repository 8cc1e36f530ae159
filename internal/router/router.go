package router

import (
	"net/http"

	"storefront/internal/auth"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Products *handler.ProductHandler
	Orders   *handler.OrderHandler
	Shipping *handler.ShippingHandler
	Profiles *handler.ProfileHandler
}

// Options configures the cross-cutting parts of the router.
type Options struct {
	// APIKey is the optional gateway key. Empty disables the check.
	APIKey string
	// Verifier resolves bearer tokens. Nil treats every caller as a guest.
	Verifier auth.Verifier
	// Metrics records request metrics and is served on /metrics when set.
	Metrics *metrics.Metrics
	// Files serves locally stored payment proofs under /files/ when set.
	Files http.Handler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}
	if opts.Files != nil {
		mux.Handle("/files/", http.StripPrefix("/files/", opts.Files))
	}

	// Catalogue
	mux.HandleFunc("/products", h.Products.List)
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products/" {
			h.Products.List(w, r)
			return
		}
		h.Products.GetByID(w, r)
	})

	// Orders
	mux.HandleFunc("/orders", h.Orders.Create)
	mux.HandleFunc("/orders/proof", h.Orders.UploadProof)
	mux.HandleFunc("/orders/cancel", h.Orders.Cancel)
	mux.HandleFunc("/orders/track", h.Orders.Track)
	mux.HandleFunc("/orders/history", h.Orders.History)

	mux.HandleFunc("/shipping/quote", h.Shipping.Quote)
	mux.HandleFunc("/profile", h.Profiles.Handle)

	verifier := opts.Verifier
	if verifier == nil {
		verifier = auth.NewNopVerifier()
	}

	// Outermost first: RequestID -> Logging -> Recovery -> CORS -> APIKeyAuth -> Authenticate -> Metrics
	var handler http.Handler = mux
	handler = middleware.Metrics(opts.Metrics)(handler)
	handler = middleware.Authenticate(verifier)(handler)
	handler = middleware.APIKeyAuth(opts.APIKey)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging()(handler)
	handler = middleware.RequestID(logger)(handler)

	return handler
}
