// Package csrf implements the CSRF registry (C4): single-use nonces
// bound to a service, consumed at most once, swept on TTL.
//
// The consuming-read semantics (sweep expired, then read-and-delete in
// one pass) are grounded directly on the original driver's
// ModelCsrf::read (sweep by ttl, then read, then delete-by-key if
// found) rather than reinvented.
package csrf

import (
	"context"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

// Registry mints and consumes CSRF keys against a Store.
type Registry struct {
	store store.Store
}

func New(s store.Store) *Registry {
	return &Registry{store: s}
}

// Create mints a new CSRF key/value pair for serviceID, expiring after
// ttl. Per the spec's own Open Question, value is always set equal to
// key; the column is retained for a future dual-use.
func (r *Registry) Create(ctx context.Context, serviceID ssoid.ServiceID, ttl time.Duration) (key string, err error) {
	key = ssoid.NewValue()
	c := model.Csrf{
		Key:       key,
		Value:     key,
		TTL:       time.Now().Add(ttl),
		ServiceID: serviceID,
	}
	if _, err := r.store.CsrfCreate(ctx, c); err != nil {
		return "", err
	}
	return key, nil
}

// Consume redeems csrfKey, succeeding at most once and only for the
// service it was issued to. A missing, expired, or already-consumed key
// and a service mismatch are both reported as "not ok" — the caller
// cannot distinguish them, which is the point: neither case should leak
// information about whether the key ever existed under another service.
func (r *Registry) Consume(ctx context.Context, csrfKey string, expectingServiceID ssoid.ServiceID) (ok bool, err error) {
	c, err := r.store.CsrfReadOpt(ctx, csrfKey)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}
	if c.ServiceID != expectingServiceID {
		return false, nil
	}
	return true, nil
}
