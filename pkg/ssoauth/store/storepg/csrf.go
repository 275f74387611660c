package storepg

import (
	"context"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
)

type csrfPersistence struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	CreatedAt time.Time `db:"created_at"`
	TTL       time.Time `db:"ttl"`
	ServiceID string    `db:"service_id"`
}

func (s *Store) CsrfCreate(ctx context.Context, c model.Csrf) (model.Csrf, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	query := `INSERT INTO ssoauth_csrf (key, value, created_at, ttl, service_id) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, c.Key, c.Value, c.CreatedAt, c.TTL, c.ServiceID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return model.Csrf{}, ssoerr.Conflict("csrf key already exists")
		}
		return model.Csrf{}, ssoerr.Internal("create csrf", err)
	}
	return c, nil
}

// CsrfReadOpt sweeps expired rows, then reads-and-deletes the requested
// key in the same transaction, grounded on the original driver's
// ModelCsrf::read (delete_by_ttl, read_inner, delete_by_key).
func (s *Store) CsrfReadOpt(ctx context.Context, key string) (*model.Csrf, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, ssoerr.Internal("begin csrf read", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ssoauth_csrf WHERE ttl < now()`); err != nil {
		return nil, ssoerr.Internal("sweep expired csrf", err)
	}

	var p csrfPersistence
	err = tx.GetContext(ctx, &p, `SELECT * FROM ssoauth_csrf WHERE key = $1`, key)
	if isNoRows(err) {
		if err := tx.Commit(); err != nil {
			return nil, ssoerr.Internal("commit csrf sweep", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, ssoerr.Internal("read csrf", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ssoauth_csrf WHERE key = $1`, key); err != nil {
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
	return model.Csrf{
		Key:       p.Key,
		Value:     p.Value,
		CreatedAt: p.CreatedAt,
		TTL:       p.TTL,
		ServiceID: serviceID,
	}, nil
}
