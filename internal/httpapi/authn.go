package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"taskhub.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// requireAuth extracts the bearer token, verifies it as an access token
// and attaches the payload to the request context. Absence and
// verification failure both reject with 401, under distinct codes.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "TOKEN_REQUIRED", "access token is required")
			return
		}
		payload, err := a.tokens.VerifyAccess(token)
		if err != nil {
			code := "INVALID_TOKEN"
			if errors.Is(err, auth.ErrTokenExpired) {
				code = "TOKEN_EXPIRED"
			}
			writeError(w, r, http.StatusUnauthorized, code, "invalid or expired access token")
			return
		}
		ctx := auth.ContextWithPayload(r.Context(), payload)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRefreshToken reads the refresh token from the request body
// field "refreshToken" and verifies it with the refresh secret. The raw
// token is stored in the context so the handler can exchange it.
func (a *API) requireRefreshToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.RefreshToken) == "" {
			writeError(w, r, http.StatusUnauthorized, "REFRESH_TOKEN_REQUIRED", "refresh token is required")
			return
		}
		payload, err := a.tokens.VerifyRefresh(body.RefreshToken)
		if err != nil {
			code := "INVALID_REFRESH_TOKEN"
			if errors.Is(err, auth.ErrTokenExpired) {
				code = "REFRESH_TOKEN_EXPIRED"
			}
			writeError(w, r, http.StatusUnauthorized, code, "invalid or expired refresh token")
			return
		}
		ctx := auth.ContextWithPayload(r.Context(), payload)
		ctx = auth.ContextWithToken(ctx, body.RefreshToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches the payload when a valid access token is
// present and lets the request through otherwise.
func (a *API) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
			if payload, err := a.tokens.VerifyAccess(token); err == nil {
				ctx := auth.ContextWithPayload(r.Context(), payload)
				ctx = auth.ContextWithToken(ctx, token)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only the listed roles through. It must run after
// requireAuth: a missing payload is a 401, not a 403.
func RequireRole(allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, ok := auth.PayloadFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "authentication required")
				return
			}
			if !slices.Contains(allowed, payload.Role) {
				writeError(w, r, http.StatusForbidden, "INSUFFICIENT_ROLE_ACCESS", "insufficient role access")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermissions allows the request through only when every listed
// capability is granted. The wildcard permission satisfies any check.
func RequirePermissions(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, ok := auth.PayloadFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "authentication required")
				return
			}
			if !payload.Permissions.HasAll(required...) {
				writeError(w, r, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership rejects the request unless the named path, query or
// body field equals the authenticated user's ID.
func RequireOwnership(field string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, ok := auth.PayloadFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "authentication required")
				return
			}
			resourceID := r.PathValue(field)
			if resourceID == "" {
				resourceID = r.URL.Query().Get(field)
			}
			if resourceID == "" {
				resourceID = bodyField(r, field)
			}
			if resourceID == "" || resourceID != payload.UserID {
				writeError(w, r, http.StatusForbidden, "OWNERSHIP_REQUIRED", "resource ownership required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bodyField peeks a string field out of a JSON request body and
// restores the body for downstream handlers.
func bodyField(r *http.Request, field string) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	var fields map[string]any
	if json.Unmarshal(raw, &fields) != nil {
		return ""
	}
	if v, ok := fields[field].(string); ok {
		return v
	}
	return ""
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
