package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an existing database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// OpenPG opens a pgx-backed connection pool for the store.
func OpenPG(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// DB exposes the underlying handle for readiness probes and migrations.
func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Close() error { return s.db.Close() }

const identityColumns = `id, email, password_hash, first_name, last_name, role, permissions, is_active, created_at, updated_at`

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where email = $1`, email)
	return scanIdentity(row)
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where id = $1`, id)
	return scanIdentity(row)
}

func (s *PGStore) Create(ctx context.Context, identity *Identity) error {
	perms, _ := json.Marshal(identity.Permissions.Normalize())
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, first_name, last_name, role, permissions, is_active, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		identity.ID, identity.Email, identity.PasswordHash, identity.FirstName, identity.LastName,
		string(identity.Role), perms, identity.IsActive, identity.CreatedAt, identity.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (s *PGStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = now() where id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`update users set
			first_name = coalesce($2, first_name),
			last_name  = coalesce($3, last_name),
			updated_at = now()
		 where id = $1
		 returning `+identityColumns,
		id, upd.FirstName, upd.LastName,
	)
	return scanIdentity(row)
}

func (s *PGStore) List(ctx context.Context) ([]*Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+identityColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, identity)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*Identity, error) {
	var (
		identity Identity
		role     string
		perms    []byte
	)
	err := row.Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash,
		&identity.FirstName, &identity.LastName, &role, &perms,
		&identity.IsActive, &identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	identity.Role = Role(role)
	_ = json.Unmarshal(perms, &identity.Permissions)
	return &identity, nil
}

// isUniqueViolation detects a PostgreSQL unique constraint violation
// without importing the driver error type directly.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type sqlStater interface{ SQLState() string }
	var pgErr sqlStater
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
