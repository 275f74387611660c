package authn_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/audit"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/authn"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store/storemem"
)

func TestAuthenticateAbsentCredential(t *testing.T) {
	s := storemem.New()
	a := authn.New(s)
	res, err := a.Authenticate(context.Background(), "", testMeta())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.Kind != authn.Absent {
		t.Fatalf("expected Absent, got %v", res.Kind)
	}
}

func TestAuthenticateRootKey(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	root, err := s.KeyCreate(ctx, model.Key{ID: ssoid.NewKeyID(), IsEnabled: true, Value: ssoid.NewValue(), Type: model.KeyTypeKey})
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}

	a := authn.New(s)
	res, err := a.Authenticate(ctx, root.Value, testMeta())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.Kind != authn.Root {
		t.Fatalf("expected Root, got %v", res.Kind)
	}
}

func TestAuthenticateServiceKey(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	svc, err := s.ServiceCreate(ctx, model.Service{ID: ssoid.NewServiceID(), IsEnabled: true, Name: "acme"})
	if err != nil {
		t.Fatalf("ServiceCreate: %v", err)
	}
	svcID := svc.ID
	key, err := s.KeyCreate(ctx, model.Key{ID: ssoid.NewKeyID(), IsEnabled: true, Value: ssoid.NewValue(), Type: model.KeyTypeKey, ServiceID: &svcID})
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}

	a := authn.New(s)
	res, err := a.Authenticate(ctx, key.Value, testMeta())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.Kind != authn.Service {
		t.Fatalf("expected Service, got %v", res.Kind)
	}
	if res.Service == nil || res.Service.ID != svc.ID {
		t.Fatal("expected the resolved service to be attached to the result")
	}
}

func TestAuthenticateRejectsDisabledServiceKey(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	svc, err := s.ServiceCreate(ctx, model.Service{ID: ssoid.NewServiceID(), IsEnabled: false, Name: "disabled"})
	if err != nil {
		t.Fatalf("ServiceCreate: %v", err)
	}
	svcID := svc.ID
	key, err := s.KeyCreate(ctx, model.Key{ID: ssoid.NewKeyID(), IsEnabled: true, Value: ssoid.NewValue(), Type: model.KeyTypeKey, ServiceID: &svcID})
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}

	a := authn.New(s)
	if _, err := a.Authenticate(ctx, key.Value, testMeta()); err == nil {
		t.Fatal("Authenticate should reject a key scoped to a disabled service")
	}
}

func TestAuthenticateRejectsRevokedKey(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	key, err := s.KeyCreate(ctx, model.Key{ID: ssoid.NewKeyID(), IsEnabled: true, IsRevoked: true, Value: ssoid.NewValue(), Type: model.KeyTypeKey})
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}

	a := authn.New(s)
	if _, err := a.Authenticate(ctx, key.Value, testMeta()); err == nil {
		t.Fatal("Authenticate should reject a revoked key")
	}
}

func TestAuthenticateRejectsUnknownCredential(t *testing.T) {
	s := storemem.New()
	a := authn.New(s)
	if _, err := a.Authenticate(context.Background(), "not-a-real-key", testMeta()); err == nil {
		t.Fatal("Authenticate should reject a credential that doesn't match any key")
	}
}

func TestAuthenticateRejectsUserScopedKeyValue(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	svc, err := s.ServiceCreate(ctx, model.Service{ID: ssoid.NewServiceID(), IsEnabled: true, Name: "acme"})
	if err != nil {
		t.Fatalf("ServiceCreate: %v", err)
	}
	svcID := svc.ID
	userID := ssoid.NewUserID()
	tokenKey, err := s.KeyCreate(ctx, model.Key{ID: ssoid.NewKeyID(), IsEnabled: true, Value: ssoid.NewValue(), Type: model.KeyTypeToken, ServiceID: &svcID, UserID: &userID})
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}

	a := authn.New(s)
	if _, err := a.Authenticate(ctx, tokenKey.Value, testMeta()); err == nil {
		t.Fatal("a user-scoped key value must never authenticate an API caller")
	}
}

func testMeta() audit.Meta {
	return audit.Meta{UserAgent: "go-test", Remote: "127.0.0.1"}
}
