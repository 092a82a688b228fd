package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps identities in process memory. Used in tests and as
// the development fallback when no database DSN is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Identity
	byEmail map[string]string
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]*Identity),
		byEmail: make(map[string]string),
	}
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(s.byID[id]), nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(identity), nil
}

func (s *InMemoryStore) Create(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken
	}
	stored := cloneIdentity(identity)
	stored.Email = email
	s.byID[stored.ID] = stored
	s.byEmail[email] = stored.ID
	return nil
}

func (s *InMemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.FirstName != nil {
		identity.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		identity.LastName = *upd.LastName
	}
	identity.UpdatedAt = time.Now().UTC()
	return cloneIdentity(identity), nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Identity, 0, len(s.byID))
	for _, identity := range s.byID {
		result = append(result, cloneIdentity(identity))
	}
	return result, nil
}

// SetRole rewrites the stored role and permission set; tests use it to
// simulate out-of-band role changes between issuance and refresh.
func (s *InMemoryStore) SetRole(id string, role Role, perms Permissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.Role = role
	identity.Permissions = perms.Normalize()
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

// SetActive toggles the active flag.
func (s *InMemoryStore) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.IsActive = active
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneIdentity(in *Identity) *Identity {
	if in == nil {
		return nil
	}
	out := *in
	out.Permissions = append(Permissions(nil), in.Permissions...)
	return &out
}
