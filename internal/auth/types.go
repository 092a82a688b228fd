package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// ParseRole normalizes a role string. An empty string maps to RoleUser.
func ParseRole(raw string) (Role, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return RoleUser, nil
	}
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// Identity is the durable user record held by the credential store.
// PasswordHash is replaced wholesale on password change and is never
// empty for a login-capable account.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Permissions  Permissions
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPayload is the identity snapshot embedded in signed tokens.
type TokenPayload struct {
	UserID      string
	Email       string
	Role        Role
	Permissions Permissions
}

// TokenPair is the DTO returned to clients after login, registration
// and refresh. ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// ProfileUpdate carries the mutable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}
