package storesqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

type userPersistence struct {
	ID                    string         `db:"id"`
	CreatedAt             string         `db:"created_at"`
	UpdatedAt             string         `db:"updated_at"`
	IsEnabled             bool           `db:"is_enabled"`
	Name                  string         `db:"name"`
	Email                 string         `db:"email"`
	Locale                string         `db:"locale"`
	Timezone              string         `db:"timezone"`
	PasswordAllowReset    bool           `db:"password_allow_reset"`
	PasswordRequireUpdate bool           `db:"password_require_update"`
	PasswordHash          sql.NullString `db:"password_hash"`
}

func (s *Store) UserCreate(ctx context.Context, u model.User) (model.User, error) {
	if u.ID.IsNil() {
		u.ID = ssoid.NewUserID()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	query := `
		INSERT INTO ssoauth_users (
			id, created_at, updated_at, is_enabled, name, email, locale, timezone,
			password_allow_reset, password_require_update, password_hash
		) VALUES (
			:id, :created_at, :updated_at, :is_enabled, :name, :email, :locale, :timezone,
			:password_allow_reset, :password_require_update, :password_hash
		)`
	if _, err := s.db.NamedExecContext(ctx, query, userPersistenceOf(u)); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ssoerr.Conflict("email already registered")
		}
		return model.User{}, ssoerr.Internal("create user", err)
	}
	return u, nil
}

func (s *Store) UserRead(ctx context.Context, id ssoid.UserID) (*model.User, error) {
	var p userPersistence
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_users WHERE id = ?`, id.String())
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, ssoerr.Internal("read user", err)
	}
	u, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode user", err)
	}
	return &u, nil
}

func (s *Store) UserReadByEmail(ctx context.Context, email string) (*model.User, error) {
	var p userPersistence
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_users WHERE email = ?`, email)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, ssoerr.Internal("read user by email", err)
	}
	u, err := p.toDomain()
	if err != nil {
		return nil, ssoerr.Internal("decode user", err)
	}
	return &u, nil
}

func (s *Store) UserUpdate(ctx context.Context, u model.User) (model.User, error) {
	u.UpdatedAt = time.Now()
	query := `
		UPDATE ssoauth_users SET
			updated_at = :updated_at, is_enabled = :is_enabled, name = :name, email = :email,
			locale = :locale, timezone = :timezone, password_allow_reset = :password_allow_reset,
			password_require_update = :password_require_update, password_hash = :password_hash
		WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, query, userPersistenceOf(u))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ssoerr.Conflict("email already registered")
		}
		return model.User{}, ssoerr.Internal("update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.User{}, ssoerr.NotFound("user not found")
	}
	return u, nil
}

func (s *Store) UserDelete(ctx context.Context, id ssoid.UserID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ssoauth_users WHERE id = ?`, id.String())
	if err != nil {
		return ssoerr.Internal("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ssoerr.NotFound("user not found")
	}
	return nil
}

func (s *Store) UserList(ctx context.Context, p store.ListParams) ([]model.User, error) {
	limit := limitOf(p)
	where, order, args := "", "ASC", []interface{}{}
	switch {
	case p.Gt != nil:
		where, args = "created_at > ?", append(args, *p.Gt)
	case p.Lt != nil:
		where, order, args = "created_at < ?", "DESC", append(args, *p.Lt)
	}
	query := "SELECT * FROM ssoauth_users"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at " + order + " LIMIT ?"
	args = append(args, limit)

	var rows []userPersistence
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ssoerr.Internal("list users", err)
	}
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		u, err := r.toDomain()
		if err != nil {
			return nil, ssoerr.Internal("decode user", err)
		}
		out = append(out, u)
	}
	reverseIfDescendingOnly(p, out)
	return out, nil
}

func userPersistenceOf(u model.User) userPersistence {
	p := userPersistence{
		ID:                    u.ID.String(),
		CreatedAt:             EncodeCursor(u.CreatedAt),
		UpdatedAt:             EncodeCursor(u.UpdatedAt),
		IsEnabled:             u.IsEnabled,
		Name:                  u.Name,
		Email:                 u.Email,
		Locale:                u.Locale,
		Timezone:              u.Timezone,
		PasswordAllowReset:    u.PasswordAllowReset,
		PasswordRequireUpdate: u.PasswordRequireUpdate,
	}
	if u.PasswordHash != nil {
		p.PasswordHash = sql.NullString{String: *u.PasswordHash, Valid: true}
	}
	return p
}

func (p userPersistence) toDomain() (model.User, error) {
	id, err := ssoid.ParseUserID(p.ID)
	if err != nil {
		return model.User{}, err
	}
	createdAt, err := time.Parse(cursorLayout, p.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	updatedAt, err := time.Parse(cursorLayout, p.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:                    id,
		CreatedAt:             createdAt,
		UpdatedAt:             updatedAt,
		IsEnabled:             p.IsEnabled,
		Name:                  p.Name,
		Email:                 p.Email,
		Locale:                p.Locale,
		Timezone:              p.Timezone,
		PasswordAllowReset:    p.PasswordAllowReset,
		PasswordRequireUpdate: p.PasswordRequireUpdate,
	}
	if p.PasswordHash.Valid {
		h := p.PasswordHash.String
		u.PasswordHash = &h
	}
	return u, nil
}
