// Package authn implements the authenticator (C6): it resolves an
// inbound credential string to Root, Service, or Absent, and seeds an
// audit.Builder with the request meta and (if found) the service.
//
// Grounded on the teacher's TokenMiddleware.Authenticate, generalised
// from a JWT-bearer/tenant split to the Root/Service key-value split
// spec's data model requires.
package authn

import (
	"context"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/audit"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

// Kind is the classification of an inbound credential.
type Kind int

const (
	Absent Kind = iota
	Root
	Service
)

// Result is what the authenticator resolves a request's credential to.
type Result struct {
	Kind    Kind
	Service *model.Service
	Audit   *audit.Builder
}

// Authenticator classifies credentials against the store's Key table.
type Authenticator struct {
	store store.Store
}

func New(s store.Store) *Authenticator {
	return &Authenticator{store: s}
}

// Authenticate resolves credential (the raw Authorization header value,
// or "" if absent) to a Result. Lookup uses the key value as the unique
// index; disabled/revoked/non-matching credentials fail closed with
// Forbidden. A missing credential is not an error here: it resolves to
// Absent, and the caller decides whether Absent is acceptable.
func (a *Authenticator) Authenticate(ctx context.Context, credential string, meta audit.Meta) (Result, error) {
	b := audit.New(a.store, meta)

	if credential == "" {
		return Result{Kind: Absent, Audit: b}, nil
	}

	key, err := a.store.KeyReadByValue(ctx, credential)
	if err != nil {
		return Result{}, err
	}
	if key == nil || !key.Usable() {
		return Result{}, ssoerr.Forbidden("invalid credential")
	}

	if key.IsRoot() {
		return Result{Kind: Root, Audit: b}, nil
	}

	if key.IsServiceKey() {
		svc, err := a.store.ServiceRead(ctx, *key.ServiceID)
		if err != nil {
			return Result{}, err
		}
		if svc == nil || !svc.IsEnabled {
			return Result{}, ssoerr.Forbidden("service disabled")
		}
		b.SetService(svc.ID)
		b.SetKey(key.ID)
		return Result{Kind: Service, Service: svc, Audit: b}, nil
	}

	// A user-scoped key value presented at this layer is never a valid
	// caller credential — only service/root keys authorise API calls.
	return Result{}, ssoerr.Forbidden("invalid credential")
}
