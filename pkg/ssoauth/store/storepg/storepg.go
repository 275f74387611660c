// Package storepg implements store.Store against PostgreSQL via sqlx and
// lib/pq, grounded on pkg/iam/apikey/apikeyinfra's repository shape:
// NamedExecContext for writes, pq.Error code 23505 for unique-violation
// translation, and a toPersistence/toDomain struct pair per entity.
//
// ExclusiveLock/SharedLock implement the engine's two concurrency
// primitives with Postgres transaction-scoped advisory locks
// (pg_advisory_xact_lock / pg_advisory_xact_lock_shared), released
// automatically when the wrapping transaction ends.
package storepg

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS ssoauth_services (
	id                              uuid PRIMARY KEY,
	created_at                      timestamptz NOT NULL,
	updated_at                      timestamptz NOT NULL,
	is_enabled                      boolean NOT NULL,
	name                            text NOT NULL,
	url                             text NOT NULL,
	provider_local_url              text,
	provider_github_oauth2_url      text,
	provider_microsoft_oauth2_url   text
);

CREATE TABLE IF NOT EXISTS ssoauth_users (
	id                       uuid PRIMARY KEY,
	created_at               timestamptz NOT NULL,
	updated_at               timestamptz NOT NULL,
	is_enabled               boolean NOT NULL,
	name                     text NOT NULL,
	email                    text NOT NULL UNIQUE,
	locale                   text NOT NULL,
	timezone                 text NOT NULL,
	password_allow_reset     boolean NOT NULL,
	password_require_update  boolean NOT NULL,
	password_hash            text
);

CREATE TABLE IF NOT EXISTS ssoauth_keys (
	id          uuid PRIMARY KEY,
	created_at  timestamptz NOT NULL,
	updated_at  timestamptz NOT NULL,
	is_enabled  boolean NOT NULL,
	is_revoked  boolean NOT NULL,
	name        text NOT NULL,
	value       text NOT NULL UNIQUE,
	type        text NOT NULL,
	service_id  uuid REFERENCES ssoauth_services(id),
	user_id     uuid REFERENCES ssoauth_users(id)
);
CREATE INDEX IF NOT EXISTS ssoauth_keys_user_service_type_idx ON ssoauth_keys(service_id, user_id, type);

CREATE TABLE IF NOT EXISTS ssoauth_csrf (
	key         text PRIMARY KEY,
	value       text NOT NULL,
	created_at  timestamptz NOT NULL,
	ttl         timestamptz NOT NULL,
	service_id  uuid NOT NULL
);

CREATE TABLE IF NOT EXISTS ssoauth_audit (
	id           uuid PRIMARY KEY,
	created_at   timestamptz NOT NULL,
	user_agent   text NOT NULL,
	remote       text NOT NULL,
	forwarded    text,
	type         text NOT NULL,
	data         jsonb,
	service_id   uuid,
	user_id      uuid,
	key_id       uuid,
	user_key_id  uuid
);
CREATE INDEX IF NOT EXISTS ssoauth_audit_service_created_idx ON ssoauth_audit(service_id, created_at);
`

// Store is the Postgres-backed implementation of store.Store.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the package's schema, idempotently. There is no
// migration tool in the stack this module draws from, so this is a
// single forward-only DDL batch rather than a versioned chain.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return ssoerr.Internal("migrate ssoauth schema", err)
	}
	return nil
}

func (s *Store) ExclusiveLock(ctx context.Context, key int64, fn func(context.Context) error) error {
	return s.withAdvisoryLock(ctx, key, "SELECT pg_advisory_xact_lock($1)", fn)
}

func (s *Store) SharedLock(ctx context.Context, key int64, fn func(context.Context) error) error {
	return s.withAdvisoryLock(ctx, key, "SELECT pg_advisory_xact_lock_shared($1)", fn)
}

func (s *Store) withAdvisoryLock(ctx context.Context, key int64, lockQuery string, fn func(context.Context) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ssoerr.Internal("begin lock transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, lockQuery, key); err != nil {
		return ssoerr.Internal("acquire advisory lock", err)
	}

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return ssoerr.Internal("commit lock transaction", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}
