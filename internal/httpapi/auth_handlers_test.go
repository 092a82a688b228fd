package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskhub.org/internal/auth"
)

func newTestServer(t *testing.T) (*httptest.Server, *auth.InMemoryStore) {
	t.Helper()
	api, store := newTestAPI(t)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

// call sends a JSON request and decodes the JSON response.
func call(t *testing.T, srv *httptest.Server, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(authHeader, bearer+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return resp.StatusCode, decoded
}

func registerUser(t *testing.T, srv *httptest.Server, email, role string) map[string]any {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email":     email,
		"password":  "password123",
		"firstName": "Test",
		"lastName":  "User",
		"role":      role,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d (%v)", email, status, body)
	}
	return body
}

func tokensOf(t *testing.T, body map[string]any) (access, refresh string) {
	t.Helper()
	tokens, ok := body["tokens"].(map[string]any)
	if !ok {
		t.Fatalf("response has no tokens object: %v", body)
	}
	access, _ = tokens["accessToken"].(string)
	refresh, _ = tokens["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("incomplete token pair: %v", tokens)
	}
	return access, refresh
}

func TestRegisterEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	body := registerUser(t, srv, "user@x.com", "")
	tokens := body["tokens"].(map[string]any)
	if tokens["expiresIn"].(float64) != 900 {
		t.Fatalf("expected expiresIn 900, got %v", tokens["expiresIn"])
	}
	user := body["user"].(map[string]any)
	if user["email"] != "user@x.com" || user["role"] != "USER" {
		t.Fatalf("unexpected user view: %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatal("password hash must never appear in responses")
	}

	// Same email again conflicts.
	status, body := call(t, srv, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email":     "user@x.com",
		"password":  "password123",
		"firstName": "Other",
		"lastName":  "User",
	})
	if status != http.StatusConflict || body["code"] != "EMAIL_TAKEN" {
		t.Fatalf("expected 409 EMAIL_TAKEN, got %d (%v)", status, body)
	}
}

func TestRegisterValidationEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		req  map[string]any
		code string
	}{
		{"missing fields", map[string]any{"email": "user@x.com"}, "MISSING_REQUIRED_FIELDS"},
		{"bad email", map[string]any{"email": "not-an-email", "password": "password123", "firstName": "A", "lastName": "B"}, "INVALID_EMAIL_FORMAT"},
		{"short password", map[string]any{"email": "user@x.com", "password": "short", "firstName": "A", "lastName": "B"}, "WEAK_PASSWORD"},
		{"unknown role", map[string]any{"email": "user@x.com", "password": "password123", "firstName": "A", "lastName": "B", "role": "ROOT"}, "INVALID_ROLE"},
	}
	for _, tc := range cases {
		status, body := call(t, srv, http.MethodPost, "/v1/auth/register", "", tc.req)
		if status != http.StatusBadRequest || body["code"] != tc.code {
			t.Fatalf("%s: expected 400 %s, got %d (%v)", tc.name, tc.code, status, body)
		}
	}
}

func TestLoginEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	registerUser(t, srv, "user@x.com", "")

	status, body := call(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "user@x.com", "password": "password123",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	tokensOf(t, body)

	// Wrong password, unknown email and a deactivated account all produce
	// the same status and code.
	user := body["user"].(map[string]any)
	if err := store.SetActive(user["id"].(string), false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	denied := []map[string]any{
		{"email": "user@x.com", "password": "wrongpassword"},
		{"email": "nobody@x.com", "password": "password123"},
		{"email": "user@x.com", "password": "password123"},
	}
	for _, req := range denied {
		status, body := call(t, srv, http.MethodPost, "/v1/auth/login", "", req)
		if status != http.StatusUnauthorized || body["code"] != "INVALID_CREDENTIALS" {
			t.Fatalf("login %v: expected 401 INVALID_CREDENTIALS, got %d (%v)", req, status, body)
		}
	}
}

func TestRefreshEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	body := registerUser(t, srv, "user@x.com", "")
	access, refresh := tokensOf(t, body)

	status, body := call(t, srv, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refreshToken": refresh,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	tokensOf(t, body)

	// Missing token.
	status, body = call(t, srv, http.MethodPost, "/v1/auth/refresh", "", map[string]any{})
	if status != http.StatusUnauthorized || body["code"] != "REFRESH_TOKEN_REQUIRED" {
		t.Fatalf("expected 401 REFRESH_TOKEN_REQUIRED, got %d (%v)", status, body)
	}

	// Garbage token.
	status, body = call(t, srv, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refreshToken": "garbage",
	})
	if status != http.StatusUnauthorized || body["code"] != "INVALID_REFRESH_TOKEN" {
		t.Fatalf("expected 401 INVALID_REFRESH_TOKEN, got %d (%v)", status, body)
	}

	// An access token must never pass as a refresh token.
	status, body = call(t, srv, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refreshToken": access,
	})
	if status != http.StatusUnauthorized || body["code"] != "INVALID_REFRESH_TOKEN" {
		t.Fatalf("expected 401 INVALID_REFRESH_TOKEN for access token, got %d (%v)", status, body)
	}
}

func TestProfileEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	body := registerUser(t, srv, "user@x.com", "")
	access, _ := tokensOf(t, body)

	// Unauthenticated.
	status, body := call(t, srv, http.MethodGet, "/v1/auth/profile", "", nil)
	if status != http.StatusUnauthorized || body["code"] != "TOKEN_REQUIRED" {
		t.Fatalf("expected 401 TOKEN_REQUIRED, got %d (%v)", status, body)
	}

	status, body = call(t, srv, http.MethodGet, "/v1/auth/profile", access, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if body["user"].(map[string]any)["email"] != "user@x.com" {
		t.Fatalf("unexpected profile: %v", body)
	}

	status, body = call(t, srv, http.MethodPut, "/v1/auth/profile", access, map[string]any{
		"firstName": "Renamed",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	user := body["user"].(map[string]any)
	if user["firstName"] != "Renamed" || user["lastName"] != "User" {
		t.Fatalf("partial update went wrong: %v", user)
	}

	// Empty update is rejected.
	status, body = call(t, srv, http.MethodPut, "/v1/auth/profile", access, map[string]any{})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty update, got %d (%v)", status, body)
	}
}

func TestPasswordChangeFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	body := registerUser(t, srv, "user@x.com", "")
	access, _ := tokensOf(t, body)

	// Wrong current password.
	status, body := call(t, srv, http.MethodPut, "/v1/auth/password", access, map[string]any{
		"currentPassword": "wrongpassword",
		"newPassword":     "new-password-123",
	})
	if status != http.StatusUnauthorized || body["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("expected 401 INVALID_CREDENTIALS, got %d (%v)", status, body)
	}

	// Weak replacement.
	status, body = call(t, srv, http.MethodPut, "/v1/auth/password", access, map[string]any{
		"currentPassword": "password123",
		"newPassword":     "short",
	})
	if status != http.StatusBadRequest || body["code"] != "WEAK_PASSWORD" {
		t.Fatalf("expected 400 WEAK_PASSWORD, got %d (%v)", status, body)
	}

	status, body = call(t, srv, http.MethodPut, "/v1/auth/password", access, map[string]any{
		"currentPassword": "password123",
		"newPassword":     "new-password-123",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}

	// Old credentials stop working, new ones log in.
	status, _ = call(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "user@x.com", "password": "password123",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("old password still works: %d", status)
	}
	status, _ = call(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "user@x.com", "password": "new-password-123",
	})
	if status != http.StatusOK {
		t.Fatalf("new password rejected: %d", status)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	body := registerUser(t, srv, "user@x.com", "")
	access, _ := tokensOf(t, body)

	status, body := call(t, srv, http.MethodPost, "/v1/auth/logout", access, nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("expected 200 ok, got %d (%v)", status, body)
	}
}

func TestUserListGates(t *testing.T) {
	srv, _ := newTestServer(t)

	adminBody := registerUser(t, srv, "admin@x.com", "ADMIN")
	adminAccess, _ := tokensOf(t, adminBody)
	managerBody := registerUser(t, srv, "manager@x.com", "MANAGER")
	managerAccess, _ := tokensOf(t, managerBody)
	userBody := registerUser(t, srv, "user@x.com", "")
	userAccess, _ := tokensOf(t, userBody)

	// Plain users fail the role gate.
	status, body := call(t, srv, http.MethodGet, "/v1/users", userAccess, nil)
	if status != http.StatusForbidden || body["code"] != "INSUFFICIENT_ROLE_ACCESS" {
		t.Fatalf("expected 403 INSUFFICIENT_ROLE_ACCESS, got %d (%v)", status, body)
	}

	// Managers pass the role gate but lack the user:read capability.
	status, body = call(t, srv, http.MethodGet, "/v1/users", managerAccess, nil)
	if status != http.StatusForbidden || body["code"] != "INSUFFICIENT_PERMISSIONS" {
		t.Fatalf("expected 403 INSUFFICIENT_PERMISSIONS, got %d (%v)", status, body)
	}

	// Admin wildcard clears both gates.
	status, body = call(t, srv, http.MethodGet, "/v1/users", adminAccess, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	users, ok := body["users"].([]any)
	if !ok || len(users) != 3 {
		t.Fatalf("expected 3 users, got %v", body["users"])
	}
}

func TestUserGetOwnership(t *testing.T) {
	srv, _ := newTestServer(t)

	first := registerUser(t, srv, "first@x.com", "")
	firstAccess, _ := tokensOf(t, first)
	firstID := first["user"].(map[string]any)["id"].(string)
	second := registerUser(t, srv, "second@x.com", "")
	secondID := second["user"].(map[string]any)["id"].(string)

	status, body := call(t, srv, http.MethodGet, "/v1/users/"+firstID, firstAccess, nil)
	if status != http.StatusOK {
		t.Fatalf("own record rejected: %d (%v)", status, body)
	}
	if body["user"].(map[string]any)["email"] != "first@x.com" {
		t.Fatalf("unexpected record: %v", body)
	}

	status, body = call(t, srv, http.MethodGet, "/v1/users/"+secondID, firstAccess, nil)
	if status != http.StatusForbidden || body["code"] != "OWNERSHIP_REQUIRED" {
		t.Fatalf("expected 403 OWNERSHIP_REQUIRED, got %d (%v)", status, body)
	}
}

func TestHealthAndInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d (%v)", status, body)
	}

	status, body = call(t, srv, http.MethodGet, "/readyz", "", nil)
	if status != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("readyz: %d (%v)", status, body)
	}

	// Info reflects authentication when a token is supplied.
	reg := registerUser(t, srv, "user@x.com", "")
	access, _ := tokensOf(t, reg)
	status, body = call(t, srv, http.MethodGet, "/v1/info", access, nil)
	if status != http.StatusOK || body["authenticated_as"] != "user@x.com" {
		t.Fatalf("info: %d (%v)", status, body)
	}

	status, body = call(t, srv, http.MethodGet, "/v1/unknown", "", nil)
	if status != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("fallback route: %d (%v)", status, body)
	}
}
