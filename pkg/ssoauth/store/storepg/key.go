package storepg

import (
	"context"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

type keyPersistence struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	IsEnabled bool      `db:"is_enabled"`
	IsRevoked bool      `db:"is_revoked"`
	Name      string    `db:"name"`
	Value     string    `db:"value"`
	Type      string    `db:"type"`
	ServiceID *string   `db:"service_id"`
	UserID    *string   `db:"user_id"`
}

func (s *Store) KeyCreate(ctx context.Context, k model.Key) (model.Key, error) {
	if k.ID.IsNil() {
		k.ID = ssoid.NewKeyID()
	}
	query := `
		INSERT INTO ssoauth_keys (
			id, created_at, updated_at, is_enabled, is_revoked, name, value, type, service_id, user_id
		) VALUES (
			:id, :created_at, :updated_at, :is_enabled, :is_revoked, :name, :value, :type, :service_id, :user_id
		)`
	if _, err := s.db.NamedExecContext(ctx, query, keyPersistenceOf(k)); err != nil {
		if isUniqueViolation(err) {
			return model.Key{}, ssoerr.Conflict("key value already exists")
		}
		return model.Key{}, ssoerr.Internal("create key", err)
	}
	return k, nil
}

func (s *Store) KeyRead(ctx context.Context, id ssoid.KeyID) (*model.Key, error) {
	var p keyPersistence
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_keys WHERE id = $1`, id.String())
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, ssoerr.Internal("read key", err)
	}
	k, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode key", err)
	}
	return &k, nil
}

func (s *Store) KeyReadByValue(ctx context.Context, value string) (*model.Key, error) {
	var p keyPersistence
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_keys WHERE value = $1`, value)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, ssoerr.Internal("read key by value", err)
	}
	k, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode key", err)
	}
	return &k, nil
}

func (s *Store) KeyReadByUser(ctx context.Context, serviceID ssoid.ServiceID, userID ssoid.UserID, t model.KeyType) (*model.Key, error) {
	var p keyPersistence
	query := `SELECT * FROM ssoauth_keys WHERE service_id = $1 AND user_id = $2 AND type = $3 LIMIT 1`
	err := s.db.GetContext(ctx, &p, query, serviceID.String(), userID.String(), string(t))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, ssoerr.Internal("read key by user", err)
	}
	k, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode key", err)
	}
	return &k, nil
}

func (s *Store) KeyUpdate(ctx context.Context, k model.Key) (model.Key, error) {
	query := `
		UPDATE ssoauth_keys SET
			updated_at = :updated_at, is_enabled = :is_enabled, is_revoked = :is_revoked, name = :name
		WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, query, keyPersistenceOf(k))
	if err != nil {
		return model.Key{}, ssoerr.Internal("update key", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Key{}, ssoerr.NotFound("key not found")
	}
	return k, nil
}

func (s *Store) KeyDelete(ctx context.Context, id ssoid.KeyID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ssoauth_keys WHERE id = $1`, id.String())
	if err != nil {
		return ssoerr.Internal("delete key", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ssoerr.NotFound("key not found")
	}
	return nil
}

func (s *Store) KeyList(ctx context.Context, serviceID *ssoid.ServiceID, p store.ListParams) ([]model.Key, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	where := ""
	args := []interface{}{}
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}
	if serviceID != nil {
		where = "service_id = " + next(serviceID.String())
	}
	order := "ASC"
	switch {
	case p.Gt != nil:
		cond := "created_at > " + next(*p.Gt)
		where = appendWhere(where, cond)
	case p.Lt != nil:
		cond := "created_at < " + next(*p.Lt)
		where = appendWhere(where, cond)
		order = "DESC"
	}

	query := "SELECT * FROM ssoauth_keys"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at " + order + " LIMIT " + next(limit)

	var rows []keyPersistence
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ssoerr.Internal("list keys", err)
	}
	out := make([]model.Key, 0, len(rows))
	for _, r := range rows {
		k, err := r.toDomain()
		if err != nil {
			return nil, ssoerr.Internal("decode key", err)
		}
		out = append(out, k)
	}
	reverseIfDescendingOnly(p, out)
	return out, nil
}

func (s *Store) KeyUpdateManyByUser(ctx context.Context, userID ssoid.UserID) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ssoauth_keys SET is_enabled = false, is_revoked = true, updated_at = now() WHERE user_id = $1`,
		userID.String())
	if err != nil {
		return 0, ssoerr.Internal("revoke keys by user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ssoerr.Internal("revoke keys by user: rows affected", err)
	}
	return int(n), nil
}

func keyPersistenceOf(k model.Key) keyPersistence {
	p := keyPersistence{
		ID:        k.ID.String(),
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
		IsEnabled: k.IsEnabled,
		IsRevoked: k.IsRevoked,
		Name:      k.Name,
		Value:     k.Value,
		Type:      string(k.Type),
	}
	if k.ServiceID != nil {
		id := k.ServiceID.String()
		p.ServiceID = &id
	}
	if k.UserID != nil {
		id := k.UserID.String()
		p.UserID = &id
	}
	return p
}

func (p keyPersistence) toDomain() (model.Key, error) {
	id, err := ssoid.ParseKeyID(p.ID)
	if err != nil {
		return model.Key{}, err
	}
	k := model.Key{
		ID:        id,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		IsEnabled: p.IsEnabled,
		IsRevoked: p.IsRevoked,
		Name:      p.Name,
		Value:     p.Value,
		Type:      model.KeyType(p.Type),
	}
	if p.ServiceID != nil {
		sid, err := ssoid.ParseServiceID(*p.ServiceID)
		if err != nil {
			return model.Key{}, err
		}
		k.ServiceID = &sid
	}
	if p.UserID != nil {
		uid, err := ssoid.ParseUserID(*p.UserID)
		if err != nil {
			return model.Key{}, err
		}
		k.UserID = &uid
	}
	return k, nil
}
