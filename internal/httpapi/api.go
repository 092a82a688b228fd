// Package httpapi is the HTTP transport layer: route wiring, request
// middleware and the authentication/authorization guards.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"taskhub.org/internal/auth"
	"taskhub.org/internal/obs"
)

// ReadyProbe reports backend readiness (e.g. database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auth service.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	tokens     *auth.TokenCodec
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec int
}

// New wires routes and guards. The token codec comes from the service so
// middleware and handlers verify against the same signing configuration.
func New(rp ReadyProbe, version string, svc *auth.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		tokens:     svc.Tokens(),
		readyProbe: rp,
		version:    version,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReady)
	a.mux.Handle("GET /v1/info", a.optionalAuth(http.HandlerFunc(a.handleInfo)))
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /v1/auth/login", a.handleLogin)
	a.mux.Handle("POST /v1/auth/refresh", a.requireRefreshToken(http.HandlerFunc(a.handleRefresh)))
	a.mux.Handle("POST /v1/auth/logout", a.requireAuth(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("GET /v1/auth/profile", a.requireAuth(http.HandlerFunc(a.handleProfile)))
	a.mux.Handle("PUT /v1/auth/profile", a.requireAuth(http.HandlerFunc(a.handleUpdateProfile)))
	a.mux.Handle("PUT /v1/auth/password", a.requireAuth(http.HandlerFunc(a.handleUpdatePassword)))

	a.mux.Handle("GET /v1/users", a.requireAuth(
		RequireRole(auth.RoleAdmin, auth.RoleManager)(
			RequirePermissions(auth.PermUserRead)(
				http.HandlerFunc(a.handleListUsers)))))
	a.mux.Handle("GET /v1/users/{userID}", a.requireAuth(
		RequireOwnership("userID")(
			http.HandlerFunc(a.handleGetUser))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- operational handlers ---

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "taskhub-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"name":    "taskhub-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	}
	if payload, ok := auth.PayloadFromContext(r.Context()); ok {
		body["authenticated_as"] = payload.Email
	}
	writeJSON(w, http.StatusOK, body)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	body := map[string]any{
		"error": msg,
		"code":  code,
	}
	if rid := requestIDFrom(r); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
