// Package audit implements the per-request audit builder (C5): it
// accumulates the identities the engine resolves over the lifetime of
// one request and, on a terminal decision, appends exactly one audit
// record snapshotting that scope.
//
// The "one log line per terminal decision" shape is grounded on the
// teacher's LogxAuditService; unlike that service this one is backed by
// the persisted Store, with logx kept as a secondary, human-readable
// sink the way the teacher logs every such event regardless of whether
// a dedicated audit table exists elsewhere in its domain.
package audit

import (
	"context"
	"encoding/json"

	"github.com/Abraxas-365/manifesto/pkg/logx"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

// Meta is the request-scoped metadata extracted before any engine
// operation runs. Missing UserAgent or Remote is a BadRequest at the
// API layer, before the engine is ever invoked (spec §6).
type Meta struct {
	UserAgent string
	Remote    string
	Forwarded *string
}

// Builder is a single request's mutable audit scope. It is not safe for
// concurrent use — each request owns exactly one.
type Builder struct {
	store store.Store
	meta  Meta

	serviceID *ssoid.ServiceID
	userID    *ssoid.UserID
	keyID     *ssoid.KeyID
	userKeyID *ssoid.KeyID
}

func New(s store.Store, meta Meta) *Builder {
	return &Builder{store: s, meta: meta}
}

func (b *Builder) SetService(id ssoid.ServiceID) { b.serviceID = &id }
func (b *Builder) SetUser(id ssoid.UserID)       { b.userID = &id }
func (b *Builder) SetKey(id ssoid.KeyID)         { b.keyID = &id }
func (b *Builder) SetUserKey(id ssoid.KeyID)     { b.userKeyID = &id }

// CreateInternal appends one audit record of type auditType, snapshotting
// the builder's current scope. This is the call the engine makes on
// every terminal decision (success or failure) it itself classifies.
func (b *Builder) CreateInternal(ctx context.Context, auditType string, data any) (model.Audit, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err == nil {
			raw = encoded
		}
	}
	return b.create(ctx, auditType, raw)
}

// CreateUnchecked appends an audit record carrying client-supplied data
// verbatim (the AuditData a caller attaches to verify/revoke/refresh
// requests), with no validation of its shape.
func (b *Builder) CreateUnchecked(ctx context.Context, auditType string, data json.RawMessage) (model.Audit, error) {
	return b.create(ctx, auditType, data)
}

func (b *Builder) create(ctx context.Context, auditType string, data json.RawMessage) (model.Audit, error) {
	a := model.Audit{
		ID:        ssoid.NewAuditID(),
		UserAgent: b.meta.UserAgent,
		Remote:    b.meta.Remote,
		Forwarded: b.meta.Forwarded,
		Type:      auditType,
		Data:      data,
		ServiceID: b.serviceID,
		UserID:    b.userID,
		KeyID:     b.keyID,
		UserKeyID: b.userKeyID,
	}
	created, err := b.store.AuditCreate(ctx, a)

	fields := logx.Fields{"audit_type": auditType, "remote": b.meta.Remote}
	if b.serviceID != nil {
		fields["service_id"] = b.serviceID.String()
	}
	if b.userID != nil {
		fields["user_id"] = b.userID.String()
	}
	if err != nil {
		logx.WithFields(fields).WithError(err).Errorf("audit write failed")
		return model.Audit{}, err
	}
	logx.WithFields(fields).Infof("audit")
	return created, nil
}
