// Package api is the JSON HTTP surface for signing in, signing out and
// switching between the accounts held in the directory cookie.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/auth"
	httpmiddleware "github.com/wolfeidau/multisession/internal/http"
	"github.com/wolfeidau/multisession/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 64 * 1024

// Config configures the edge middleware.
type Config struct {
	// AllowedOrigins may make credentialed cross origin requests.
	AllowedOrigins []string

	// TrustProxy reads the client address from forwarding headers.
	TrustProxy bool

	// WebSocket serves GET /ws when set.
	WebSocket http.Handler

	// Ready reports whether backing stores are reachable, for /healthz.
	Ready func(r *http.Request) error
}

// NewHandler builds the service handler with its edge middleware.
func NewHandler(resolver *auth.Resolver, cfg Config, log zerolog.Logger) (http.Handler, error) {
	h := &handlers{resolver: resolver, ready: cfg.Ready}

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, gzhttp.GzipHandler(fn))
	}

	route("POST /auth/google", h.signIn)
	route("POST /auth/sign-out", h.signOut)
	route("POST /auth/switch", h.switchAccount)
	route("POST /auth/sync", h.sync)
	route("GET /auth/accounts", h.listAccounts)
	mux.Handle("GET /auth/me", gzhttp.GzipHandler(auth.RequireAuth(resolver)(http.HandlerFunc(h.me))))
	mux.HandleFunc("GET /healthz", h.health)

	if cfg.WebSocket != nil {
		mux.Handle("GET /ws", cfg.WebSocket)
	}

	protection := csrf.New()
	for _, origin := range cfg.AllowedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid allowed origin %q: %w", origin, err)
		}
	}

	return httpmiddleware.Chain(mux,
		withTracing(),
		logger.Requests(log),
		httpmiddleware.ClientIPMiddleware(cfg.TrustProxy),
		protection.Handler,
		withCORS(cfg.AllowedOrigins),
	), nil
}

// withTracing starts a server span per request, continuing any trace the
// caller propagated. Health checks are not traced.
func withTracing() func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware("multisession",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// withCORS allows credentialed requests from the configured origins. With
// none configured only same origin requests are served.
func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		// rs/cors treats an empty list as "*"
		return func(next http.Handler) http.Handler { return next }
	}

	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", auth.HeaderActiveAccount},
		ExposedHeaders:   []string{auth.HeaderAuthReason},
		AllowCredentials: true, // the directory cookie must be sent
	})
	return middleware.Handler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func setCookies(w http.ResponseWriter, headers []string) {
	for _, h := range headers {
		w.Header().Add("Set-Cookie", h)
	}
}
