package csrf_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/csrf"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store/storemem"
)

func TestConsumeSucceedsOnceForTheIssuingService(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	r := csrf.New(s)
	svc := ssoid.NewServiceID()

	key, err := r.Create(ctx, svc, time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := r.Consume(ctx, key, svc)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !ok {
		t.Fatal("first consume of a fresh key should succeed")
	}

	ok, err = r.Consume(ctx, key, svc)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if ok {
		t.Fatal("a csrf key must not be consumable twice")
	}
}

func TestConsumeRejectsWrongService(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	r := csrf.New(s)
	issuer := ssoid.NewServiceID()
	other := ssoid.NewServiceID()

	key, err := r.Create(ctx, issuer, time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := r.Consume(ctx, key, other)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if ok {
		t.Fatal("a key issued to one service must not consume under another")
	}
}

func TestConsumeRejectsUnknownKey(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	r := csrf.New(s)
	ok, err := r.Consume(ctx, "never-issued", ssoid.NewServiceID())
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if ok {
		t.Fatal("consuming a key that was never issued must fail")
	}
}
