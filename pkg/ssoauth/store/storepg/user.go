package storepg

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
	ID                     string         `db:"id"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
	IsEnabled              bool           `db:"is_enabled"`
	Name                   string         `db:"name"`
	Email                  string         `db:"email"`
	Locale                 string         `db:"locale"`
	Timezone               string         `db:"timezone"`
	PasswordAllowReset     bool           `db:"password_allow_reset"`
	PasswordRequireUpdate  bool           `db:"password_require_update"`
	PasswordHash           sql.NullString `db:"password_hash"`
}

func (s *Store) UserCreate(ctx context.Context, u model.User) (model.User, error) {
	if u.ID.IsNil() {
		u.ID = ssoid.NewUserID()
	}
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
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_users WHERE id = $1`, id.String())
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
	err := s.db.GetContext(ctx, &p, `SELECT * FROM ssoauth_users WHERE email = $1`, email)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM ssoauth_users WHERE id = $1`, id.String())
	if err != nil {
		return ssoerr.Internal("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ssoerr.NotFound("user not found")
	}
	return nil
}

func (s *Store) UserList(ctx context.Context, p store.ListParams) ([]model.User, error) {
	query, args := keysetQuery("ssoauth_users", "*", p)
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
	return userPersistence{
		ID:                    u.ID.String(),
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
		IsEnabled:             u.IsEnabled,
		Name:                  u.Name,
		Email:                 u.Email,
		Locale:                u.Locale,
		Timezone:              u.Timezone,
		PasswordAllowReset:    u.PasswordAllowReset,
		PasswordRequireUpdate: u.PasswordRequireUpdate,
		PasswordHash:          sql.NullString{String: derefOr(u.PasswordHash, ""), Valid: u.PasswordHash != nil},
	}
}

func (p userPersistence) toDomain() (model.User, error) {
	id, err := ssoid.ParseUserID(p.ID)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:                    id,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
		IsEnabled:             p.IsEnabled,
		Name:                  p.Name,
		Email:                 p.Email,
		Locale:                p.Locale,
		Timezone:              p.Timezone,
		PasswordAllowReset:    p.PasswordAllowReset,
		PasswordRequireUpdate: p.PasswordRequireUpdate,
	}
	if p.PasswordHash.Valid {
		hash := p.PasswordHash.String
		u.PasswordHash = &hash
	}
	return u, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
