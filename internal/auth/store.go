package auth

import "context"

// Store is the credential store consumed by Service. It is injected so
// tests can substitute an in-memory implementation; implementations must
// return ErrNotFound for missing records and ErrEmailTaken on duplicate
// email inserts.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Identity, error)
	List(ctx context.Context) ([]*Identity, error)
}
