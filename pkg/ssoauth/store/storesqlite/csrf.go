package storesqlite

import (
	"context"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
)

type csrfPersistence struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	CreatedAt string `db:"created_at"`
	TTL       string `db:"ttl"`
	ServiceID string `db:"service_id"`
}

func (s *Store) CsrfCreate(ctx context.Context, c model.Csrf) (model.Csrf, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	query := `INSERT INTO ssoauth_csrf (key, value, created_at, ttl, service_id) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, c.Key, c.Value, EncodeCursor(c.CreatedAt), EncodeCursor(c.TTL), c.ServiceID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return model.Csrf{}, ssoerr.Conflict("csrf key already exists")
		}
		return model.Csrf{}, ssoerr.Internal("create csrf", err)
	}
	return c, nil
}

// CsrfReadOpt mirrors storepg's sweep-then-consuming-read, substituting
// a SQLite transaction for Postgres's; SQLite's single-writer semantics
// make the two sequential DELETEs just as safe as the Postgres version.
func (s *Store) CsrfReadOpt(ctx context.Context, key string) (*model.Csrf, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, ssoerr.Internal("begin csrf read", err)
	}
	defer tx.Rollback()

	now := EncodeCursor(time.Now())
	if _, err := tx.ExecContext(ctx, `DELETE FROM ssoauth_csrf WHERE ttl < ?`, now); err != nil {
		return nil, ssoerr.Internal("sweep expired csrf", err)
	}

	var p csrfPersistence
	err = tx.GetContext(ctx, &p, `SELECT * FROM ssoauth_csrf WHERE key = ?`, key)
	if isNoRows(err) {
		if err := tx.Commit(); err != nil {
			return nil, ssoerr.Internal("commit csrf sweep", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, ssoerr.Internal("read csrf", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ssoauth_csrf WHERE key = ?`, key); err != nil {
		return nil, ssoerr.Internal("delete csrf", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, ssoerr.Internal("commit csrf read", err)
	}

	c, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode csrf", err)
	}
	return &c, nil
}

func (p csrfPersistence) toDomain() (model.Csrf, error) {
	serviceID, err := ssoid.ParseServiceID(p.ServiceID)
	if err != nil {
		return model.Csrf{}, err
	}
	createdAt, err := time.Parse(cursorLayout, p.CreatedAt)
	if err != nil {
		return model.Csrf{}, err
	}
	ttl, err := time.Parse(cursorLayout, p.TTL)
	if err != nil {
		return model.Csrf{}, err
	}
	return model.Csrf{
		Key:       p.Key,
		Value:     p.Value,
		CreatedAt: createdAt,
		TTL:       ttl,
		ServiceID: serviceID,
	}, nil
}
