package audit_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/audit"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store/storemem"
)

func TestCreateInternalSnapshotsAccumulatedScope(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	b := audit.New(s, audit.Meta{UserAgent: "test-agent", Remote: "127.0.0.1"})

	svcID := ssoid.NewServiceID()
	userID := ssoid.NewUserID()
	keyID := ssoid.NewKeyID()

	b.SetService(svcID)
	b.SetUser(userID)
	b.SetUserKey(keyID)

	a, err := b.CreateInternal(ctx, model.AuditLogin, nil)
	if err != nil {
		t.Fatalf("CreateInternal: %v", err)
	}
	if a.Type != model.AuditLogin {
		t.Fatalf("type mismatch: got %q", a.Type)
	}
	if a.ServiceID == nil || *a.ServiceID != svcID {
		t.Fatal("audit record should snapshot the service set on the builder")
	}
	if a.UserID == nil || *a.UserID != userID {
		t.Fatal("audit record should snapshot the user set on the builder")
	}
	if a.UserKeyID == nil || *a.UserKeyID != keyID {
		t.Fatal("audit record should snapshot the user key set on the builder")
	}
	if a.UserAgent != "test-agent" || a.Remote != "127.0.0.1" {
		t.Fatal("audit record should carry the request meta")
	}

	stored, err := s.AuditList(ctx, store.AuditListParams{})
	if err != nil {
		t.Fatalf("AuditList: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected exactly one persisted audit record, got %d", len(stored))
	}
}

func TestCreateUncheckedCarriesClientDataVerbatim(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	b := audit.New(s, audit.Meta{UserAgent: "ua", Remote: "10.0.0.1"})

	payload := []byte(`{"note":"client-supplied"}`)
	a, err := b.CreateUnchecked(ctx, "CustomClientType", payload)
	if err != nil {
		t.Fatalf("CreateUnchecked: %v", err)
	}
	if a.Type != "CustomClientType" {
		t.Fatalf("type mismatch: got %q", a.Type)
	}
	if string(a.Data) != string(payload) {
		t.Fatalf("data mismatch: got %s want %s", a.Data, payload)
	}
}
