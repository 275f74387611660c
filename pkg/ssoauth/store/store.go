// Package store defines the entity store contract (C1) the engine
// depends on. Concrete drivers (storepg, storesqlite) and the in-memory
// test fake (storemem) all implement Store.
package store

import (
	"context"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
)

// ListParams is the keyset cursor contract shared by every list
// operation: callers page with gt/lt + limit; when only Lt is set the
// store fetches descending and reverses so the caller always observes
// ascending created_at order.
type ListParams struct {
	Gt    *string
	Lt    *string
	Limit int
}

// AuditListParams extends ListParams with the audit-specific filters:
// a created_at range, an offset id to break ties within the same
// created_at, and an optional set of audit type tags.
type AuditListParams struct {
	ListParams
	CreatedGe *time.Time
	CreatedLe *time.Time
	OffsetID  *ssoid.AuditID
	Types     []string
	ServiceID *ssoid.ServiceID
}

// Store is the full persistence contract the engine consumes.
type Store interface {
	// Service
	ServiceCreate(ctx context.Context, s model.Service) (model.Service, error)
	ServiceRead(ctx context.Context, id ssoid.ServiceID) (*model.Service, error)
	ServiceUpdate(ctx context.Context, s model.Service) (model.Service, error)
	ServiceDelete(ctx context.Context, id ssoid.ServiceID) error
	ServiceList(ctx context.Context, p ListParams) ([]model.Service, error)

	// User
	UserCreate(ctx context.Context, u model.User) (model.User, error)
	UserRead(ctx context.Context, id ssoid.UserID) (*model.User, error)
	UserReadByEmail(ctx context.Context, email string) (*model.User, error)
	UserUpdate(ctx context.Context, u model.User) (model.User, error)
	UserDelete(ctx context.Context, id ssoid.UserID) error
	UserList(ctx context.Context, p ListParams) ([]model.User, error)

	// Key
	KeyCreate(ctx context.Context, k model.Key) (model.Key, error)
	KeyRead(ctx context.Context, id ssoid.KeyID) (*model.Key, error)
	KeyReadByValue(ctx context.Context, value string) (*model.Key, error)
	KeyReadByUser(ctx context.Context, serviceID ssoid.ServiceID, userID ssoid.UserID, t model.KeyType) (*model.Key, error)
	KeyUpdate(ctx context.Context, k model.Key) (model.Key, error)
	KeyDelete(ctx context.Context, id ssoid.KeyID) error
	KeyList(ctx context.Context, serviceID *ssoid.ServiceID, p ListParams) ([]model.Key, error)
	// KeyUpdateManyByUser disables and revokes every key belonging to
	// userID; used by update_email_revoke / update_password_revoke to
	// tear down a compromised account's credentials en masse.
	KeyUpdateManyByUser(ctx context.Context, userID ssoid.UserID) (int, error)

	// Csrf
	CsrfCreate(ctx context.Context, c model.Csrf) (model.Csrf, error)
	// CsrfReadOpt is a consuming read: it first sweeps rows whose TTL
	// has passed, then reads-and-deletes the requested key within one
	// transaction. Returns (nil, nil) if no (unexpired) row exists.
	CsrfReadOpt(ctx context.Context, key string) (*model.Csrf, error)

	// Audit
	AuditCreate(ctx context.Context, a model.Audit) (model.Audit, error)
	AuditRead(ctx context.Context, id ssoid.AuditID) (*model.Audit, error)
	AuditList(ctx context.Context, p AuditListParams) ([]model.Audit, error)

	// ExclusiveLock runs fn while holding an exclusive advisory lock
	// keyed by key. SharedLock runs fn while holding a shared one.
	ExclusiveLock(ctx context.Context, key int64, fn func(context.Context) error) error
	SharedLock(ctx context.Context, key int64, fn func(context.Context) error) error
}

// Lock key namespace (spec §5): small integers identifying what the
// advisory lock protects.
const (
	LockKeyTransaction int64 = 1
)
