// Package auth implements the authentication and authorization core:
// password hashing, token issuance/verification and the identity
// lifecycle (register, login, refresh, password change).
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub.org/internal/ids"
	"taskhub.org/internal/obs"
)

// Service orchestrates credential checks and token issuance over an
// injected credential Store.
type Service struct {
	store  Store
	tokens *TokenCodec
	hasher Hasher
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithHasher overrides the password hasher (e.g. a cheaper cost in tests).
func WithHasher(h Hasher) ServiceOption {
	return func(s *Service) { s.hasher = h }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, tokens *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token codec is required")
	}
	s := &Service{
		store:  store,
		tokens: tokens,
		hasher: NewHasher(DefaultHashCost),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the codec to the transport layer for request-time
// verification.
func (s *Service) Tokens() *TokenCodec { return s.tokens }

// RegisterInput carries validated registration fields. An empty Role
// defaults to RoleUser.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// Register creates a new identity. It fails with ErrEmailTaken when the
// email is already registered and assigns the role-derived default
// permission set.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, role)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	identity := &Identity{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
		Permissions:  DefaultPermissions(role),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Authenticate verifies credentials. It returns (nil, nil) — not an
// error — for an unknown email, an inactive account or a password
// mismatch, so callers cannot distinguish the three cases.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil
	}
	identity, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !identity.IsActive {
		return nil, nil
	}
	if !s.hasher.Compare(password, identity.PasswordHash) {
		return nil, nil
	}
	return identity, nil
}

// IssueTokens builds a payload from the identity snapshot and signs both
// token kinds. Issuance either fully succeeds or fully fails.
func (s *Service) IssueTokens(identity *Identity) (TokenPair, error) {
	payload := TokenPayload{
		UserID:      identity.ID,
		Email:       identity.Email,
		Role:        identity.Role,
		Permissions: identity.Permissions.Normalize(),
	}
	access, err := s.tokens.IssueAccess(payload)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefresh(payload)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.ExpiresIn(),
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The identity
// is reloaded from the store so role or permission changes made since
// issuance never survive a refresh cycle.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *Identity, error) {
	payload, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, nil, err
	}
	identity, err := s.store.FindByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidToken
		}
		return TokenPair{}, nil, err
	}
	if !identity.IsActive {
		return TokenPair{}, nil, ErrInvalidToken
	}
	pair, err := s.IssueTokens(identity)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, identity, nil
}

// Profile loads an identity by ID.
func (s *Service) Profile(ctx context.Context, userID string) (*Identity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.FindByID(ctx, userID)
}

// UpdateProfile persists profile field changes and returns the updated
// identity.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Identity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.FirstName != nil {
		trimmed := strings.TrimSpace(*upd.FirstName)
		upd.FirstName = &trimmed
	}
	if upd.LastName != nil {
		trimmed := strings.TrimSpace(*upd.LastName)
		upd.LastName = &trimmed
	}
	return s.store.UpdateProfile(ctx, userID, upd)
}

// CheckPassword compares a plaintext password against the stored hash
// for the user. Used by the transport layer before a password change.
func (s *Service) CheckPassword(ctx context.Context, userID, password string) (bool, error) {
	identity, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.hasher.Compare(password, identity.PasswordHash), nil
}

// ChangePassword hashes and persists a new password. Verifying the
// current password and enforcing length policy belong to the caller.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash)
}

// Logout is a best-effort invalidation hook. Tokens stay valid until
// expiry; the call only records the event and never fails the caller.
func (s *Service) Logout(ctx context.Context, userID string) error {
	obs.Info("user_logout", map[string]any{"user_id": userID})
	return nil
}

// List returns every identity, for the admin user listing.
func (s *Service) List(ctx context.Context) ([]*Identity, error) {
	return s.store.List(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
