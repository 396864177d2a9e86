// Package pgstore persists identities in PostgreSQL via pgx. It is the
// production implementation of the authcore.IdentityStore interface.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifeflow/authcore"
)

// Schema creates the identities table. Applied by EnsureSchema; kept as a
// single idempotent statement so repeated startups are safe.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
    id              BIGSERIAL PRIMARY KEY,
    email           TEXT        NOT NULL UNIQUE,
    name            TEXT        NOT NULL DEFAULT '',
    phone           TEXT        NOT NULL DEFAULT '',
    address_id      BIGINT      NOT NULL DEFAULT 0,
    verified        BOOLEAN     NOT NULL DEFAULT FALSE,
    role            TEXT        NOT NULL DEFAULT '',
    password_digest BYTEA       NOT NULL,
    password_key    BYTEA       NOT NULL,
    failed_logins   INT         NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store implements authcore.IdentityStore over a pgx connection pool. The
// pool is owned by the caller; Store never closes it.
type Store struct {
	pool *pgxpool.Pool
}

var _ authcore.IdentityStore = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pgstore: nil pool")
	}
	return &Store{pool: pool}, nil
}

// Connect opens a pool for dsn and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema applies the table definition.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

const identityColumns = `id, email, name, phone, address_id, verified, role,
       password_digest, password_key, failed_logins`

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	return scanIdentity(row)
}

func (s *Store) FindByID(ctx context.Context, id int64) (*authcore.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// Insert stores a new identity and returns it with the assigned id. An
// email collision reports authcore.ErrDuplicateIdentity.
func (s *Store) Insert(ctx context.Context, identity *authcore.Identity) (*authcore.Identity, error) {
	created := *identity
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (
		     email, name, phone, address_id, verified, role,
		     password_digest, password_key, failed_logins
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		identity.Email,
		identity.Name,
		identity.Phone,
		identity.AddressID,
		identity.Verified,
		identity.Role,
		identity.PasswordDigest,
		identity.PasswordKey,
		identity.FailedLogins,
	).Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, authcore.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("pgstore: insert identity: %w", err)
	}
	return &created, nil
}

func (s *Store) Update(ctx context.Context, identity *authcore.Identity) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET
		     email = $2, name = $3, phone = $4, address_id = $5,
		     verified = $6, role = $7, password_digest = $8,
		     password_key = $9, failed_logins = $10, updated_at = now()
		 WHERE id = $1`,
		identity.ID,
		identity.Email,
		identity.Name,
		identity.Phone,
		identity.AddressID,
		identity.Verified,
		identity.Role,
		identity.PasswordDigest,
		identity.PasswordKey,
		identity.FailedLogins,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrDuplicateIdentity
		}
		return fmt.Errorf("pgstore: update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrIdentityNotFound
	}
	return nil
}

func (s *Store) SetVerified(ctx context.Context, id int64, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET verified = $2, updated_at = now() WHERE id = $1`,
		id, verified)
	if err != nil {
		return fmt.Errorf("pgstore: set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrIdentityNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (*authcore.Identity, error) {
	var identity authcore.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&identity.Phone,
		&identity.AddressID,
		&identity.Verified,
		&identity.Role,
		&identity.PasswordDigest,
		&identity.PasswordKey,
		&identity.FailedLogins,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("pgstore: scan identity: %w", err)
	}
	return &identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
