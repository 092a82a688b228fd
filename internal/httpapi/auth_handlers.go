package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"taskhub.org/internal/audit"
	"taskhub.org/internal/auth"
	"taskhub.org/internal/obs"
)

const minPasswordLength = 8

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// userView is the identity projection returned to clients. The password
// hash never leaves the service.
type userView struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	FirstName   string           `json:"firstName"`
	LastName    string           `json:"lastName"`
	Role        auth.Role        `json:"role"`
	Permissions auth.Permissions `json:"permissions"`
	IsActive    bool             `json:"isActive"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func viewOf(identity *auth.Identity) userView {
	return userView{
		ID:          identity.ID,
		Email:       identity.Email,
		FirstName:   identity.FirstName,
		LastName:    identity.LastName,
		Role:        identity.Role,
		Permissions: identity.Permissions.Normalize(),
		IsActive:    identity.IsActive,
		CreatedAt:   identity.CreatedAt,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, r, http.StatusBadRequest, "MISSING_REQUIRED_FIELDS",
			"email, password, firstName and lastName are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_EMAIL_FORMAT", "invalid email format")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, r, http.StatusBadRequest, "WEAK_PASSWORD", "password must be at least 8 characters long")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ROLE", "unsupported role")
		return
	}

	identity, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, r, http.StatusConflict, "EMAIL_TAKEN", "user with this email already exists")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "REGISTRATION_FAILED", "registration failed")
		}
		return
	}

	tokens, err := a.auth.IssueTokens(identity)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "TOKEN_ISSUANCE_FAILED", "token issuance failed")
		return
	}

	_ = audit.LogEvent(r.Context(), audit.EventRegister, map[string]any{
		"email": identity.Email,
		"role":  string(identity.Role),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   viewOf(identity),
		"tokens": tokens,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "MISSING_CREDENTIALS", "email and password are required")
		return
	}

	identity, err := a.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "LOGIN_FAILED", "login failed")
		return
	}
	if identity == nil {
		// One uniform answer for unknown email, wrong password and
		// inactive account.
		obs.ObserveLogin("denied")
		_ = audit.LogEvent(r.Context(), audit.EventLoginDenied, map[string]any{
			"email": strings.ToLower(strings.TrimSpace(req.Email)),
		})
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		return
	}

	tokens, err := a.auth.IssueTokens(identity)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "TOKEN_ISSUANCE_FAILED", "token issuance failed")
		return
	}

	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), audit.EventLogin, map[string]any{
		"email": identity.Email,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   viewOf(identity),
		"tokens": tokens,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "REFRESH_TOKEN_REQUIRED", "refresh token is required")
		return
	}
	tokens, identity, err := a.auth.Refresh(r.Context(), token)
	if err != nil {
		obs.ObserveRefresh("denied")
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, r, http.StatusUnauthorized, "REFRESH_FAILED", "token refresh failed")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "REFRESH_FAILED", "token refresh failed")
		return
	}
	obs.ObserveRefresh("ok")
	_ = audit.LogEvent(r.Context(), audit.EventRefresh, map[string]any{
		"email": identity.Email,
	})
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	payload, _ := auth.PayloadFromContext(r.Context())
	_ = a.auth.Logout(r.Context(), payload.UserID)
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	payload, _ := auth.PayloadFromContext(r.Context())
	identity, err := a.auth.Profile(r.Context(), payload.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "PROFILE_FAILED", "profile lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(identity)})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	payload, _ := auth.PayloadFromContext(r.Context())
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.FirstName == nil && req.LastName == nil {
		writeError(w, r, http.StatusBadRequest, "MISSING_REQUIRED_FIELDS", "nothing to update")
		return
	}
	identity, err := a.auth.UpdateProfile(r.Context(), payload.UserID, auth.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "PROFILE_UPDATE_FAILED", "profile update failed")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventProfileUpdated, nil)
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(identity)})
}

func (a *API) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	payload, _ := auth.PayloadFromContext(r.Context())
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, r, http.StatusBadRequest, "WEAK_PASSWORD", "password must be at least 8 characters long")
		return
	}
	ok, err := a.auth.CheckPassword(r.Context(), payload.UserID, req.CurrentPassword)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "PASSWORD_UPDATE_FAILED", "password update failed")
		return
	}
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is incorrect")
		return
	}
	if err := a.auth.ChangePassword(r.Context(), payload.UserID, req.NewPassword); err != nil {
		writeError(w, r, http.StatusInternalServerError, "PASSWORD_UPDATE_FAILED", "password update failed")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPasswordChanged, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
