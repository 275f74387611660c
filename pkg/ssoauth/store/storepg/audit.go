package storepg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/lib/pq"
)

type auditPersistence struct {
	ID        string          `db:"id"`
	CreatedAt time.Time       `db:"created_at"`
	UserAgent string          `db:"user_agent"`
	Remote    string          `db:"remote"`
	Forwarded *string         `db:"forwarded"`
	Type      string          `db:"type"`
	Data      json.RawMessage `db:"data"`
	ServiceID *string         `db:"service_id"`
	UserID    *string         `db:"user_id"`
	KeyID     *string         `db:"key_id"`
	UserKeyID *string         `db:"user_key_id"`
}

func (s *Store) AuditCreate(ctx context.Context, a model.Audit) (model.Audit, error) {
	if a.ID.IsNil() {
		a.ID = ssoid.NewAuditID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO ssoauth_audit (
			id, created_at, user_agent, remote, forwarded, type, data,
			service_id, user_id, key_id, user_key_id
		) VALUES (
			:id, :created_at, :user_agent, :remote, :forwarded, :type, :data,
			:service_id, :user_id, :key_id, :user_key_id
		)`
	if _, err := s.db.NamedExecContext(ctx, query, auditPersistenceOf(a)); err != nil {
		return model.Audit{}, ssoerr.Internal("create audit", err)
	}
	return a, nil
}

func (s *Store) AuditRead(ctx context.Context, id ssoid.AuditID) (*model.Audit, error) {
	var p auditPersistence
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_audit WHERE id = $1`, id.String())
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, ssoerr.Internal("read audit", err)
	}
	a, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode audit", err)
	}
	return &a, nil
}

func (s *Store) AuditList(ctx context.Context, p store.AuditListParams) ([]model.Audit, error) {
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

	if p.ServiceID != nil {
		where = appendWhere(where, "service_id = "+next(p.ServiceID.String()))
	}
	if p.CreatedGe != nil {
		where = appendWhere(where, "created_at >= "+next(*p.CreatedGe))
	}
	if p.CreatedLe != nil {
		where = appendWhere(where, "created_at <= "+next(*p.CreatedLe))
	}
	if len(p.Types) > 0 {
		where = appendWhere(where, "type = ANY("+next(pq.StringArray(p.Types))+")")
	}

	order := "ASC"
	switch {
	case p.Gt != nil:
		where = appendWhere(where, "created_at > "+next(*p.Gt))
	case p.Lt != nil:
		where = appendWhere(where, "created_at < "+next(*p.Lt))
		order = "DESC"
	}

	// When OffsetID is set we read one extra row beyond limit, then skip
	// past the matching id below — the position-skip breaks ties within
	// a single created_at instant instead of excluding the id outright,
	// which would silently drop a sibling row sharing that timestamp.
	fetchLimit := limit
	if p.OffsetID != nil {
		fetchLimit = limit + 1
	}

	query := "SELECT * FROM ssoauth_audit"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at " + order + " LIMIT " + next(fetchLimit)

	var rows []auditPersistence
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ssoerr.Internal("list audit", err)
	}

	if p.OffsetID != nil {
		target := p.OffsetID.String()
		for i, r := range rows {
			if r.ID == target {
				rows = rows[i+1:]
				break
			}
		}
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]model.Audit, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, ssoerr.Internal("decode audit", err)
		}
		out = append(out, a)
	}
	reverseIfDescendingOnly(p.ListParams, out)
	return out, nil
}

func auditPersistenceOf(a model.Audit) auditPersistence {
	p := auditPersistence{
		ID:        a.ID.String(),
		CreatedAt: a.CreatedAt,
		UserAgent: a.UserAgent,
		Remote:    a.Remote,
		Forwarded: a.Forwarded,
		Type:      a.Type,
		Data:      a.Data,
	}
	if a.ServiceID != nil {
		id := a.ServiceID.String()
		p.ServiceID = &id
	}
	if a.UserID != nil {
		id := a.UserID.String()
		p.UserID = &id
	}
	if a.KeyID != nil {
		id := a.KeyID.String()
		p.KeyID = &id
	}
	if a.UserKeyID != nil {
		id := a.UserKeyID.String()
		p.UserKeyID = &id
	}
	return p
}

func (p auditPersistence) toDomain() (model.Audit, error) {
	id, err := ssoid.ParseAuditID(p.ID)
	if err != nil {
		return model.Audit{}, err
	}
	a := model.Audit{
		ID:        id,
		CreatedAt: p.CreatedAt,
		UserAgent: p.UserAgent,
		Remote:    p.Remote,
		Forwarded: p.Forwarded,
		Type:      p.Type,
		Data:      p.Data,
	}
	if p.ServiceID != nil {
		sid, err := ssoid.ParseServiceID(*p.ServiceID)
		if err != nil {
			return model.Audit{}, err
		}
		a.ServiceID = &sid
	}
	if p.UserID != nil {
		uid, err := ssoid.ParseUserID(*p.UserID)
		if err != nil {
			return model.Audit{}, err
		}
		a.UserID = &uid
	}
	if p.KeyID != nil {
		kid, err := ssoid.ParseKeyID(*p.KeyID)
		if err != nil {
			return model.Audit{}, err
		}
		a.KeyID = &kid
	}
	if p.UserKeyID != nil {
		kid, err := ssoid.ParseKeyID(*p.UserKeyID)
		if err != nil {
			return model.Audit{}, err
		}
		a.UserKeyID = &kid
	}
	return a, nil
}
