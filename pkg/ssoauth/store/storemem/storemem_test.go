package storemem_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store/storemem"
)

func TestUserCreateRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()

	if _, err := s.UserCreate(ctx, model.User{ID: ssoid.NewUserID(), Email: "dup@example.com"}); err != nil {
		t.Fatalf("first UserCreate: %v", err)
	}
	_, err := s.UserCreate(ctx, model.User{ID: ssoid.NewUserID(), Email: "dup@example.com"})
	if err == nil {
		t.Fatal("expected a conflict creating a user with a duplicate email")
	}
	if !ssoerr.IsConflict(err) {
		t.Fatalf("expected a conflict error, got %v", err)
	}
}

func TestUserUpdateRejectsUnknownID(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	_, err := s.UserUpdate(ctx, model.User{ID: ssoid.NewUserID(), Email: "ghost@example.com"})
	if err == nil {
		t.Fatal("expected a not-found error updating an unknown user")
	}
	if !ssoerr.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestCsrfReadOptIsConsumingAndSweepsExpired(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()

	c := model.Csrf{Key: "k1", Value: "k1", TTL: time.Now().Add(-time.Minute), ServiceID: ssoid.NewServiceID()}
	if _, err := s.CsrfCreate(ctx, c); err != nil {
		t.Fatalf("CsrfCreate: %v", err)
	}

	got, err := s.CsrfReadOpt(ctx, "k1")
	if err != nil {
		t.Fatalf("CsrfReadOpt: %v", err)
	}
	if got != nil {
		t.Fatal("an expired csrf row should never be returned")
	}
}

func TestKeyUpdateManyByUserOnlyTouchesThatUsersKeys(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	svcID := ssoid.NewServiceID()
	targetUser, otherUser := ssoid.NewUserID(), ssoid.NewUserID()

	mk := func(userID ssoid.UserID) model.Key {
		return model.Key{ID: ssoid.NewKeyID(), IsEnabled: true, Value: ssoid.NewValue(), Type: model.KeyTypeToken, ServiceID: &svcID, UserID: &userID}
	}
	k1, err := s.KeyCreate(ctx, mk(targetUser))
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}
	k2, err := s.KeyCreate(ctx, mk(otherUser))
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}

	n, err := s.KeyUpdateManyByUser(ctx, targetUser)
	if err != nil {
		t.Fatalf("KeyUpdateManyByUser: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 key revoked, got %d", n)
	}

	got1, _ := s.KeyRead(ctx, k1.ID)
	if got1.Usable() {
		t.Fatal("the target user's key should have been revoked")
	}
	got2, _ := s.KeyRead(ctx, k2.ID)
	if !got2.Usable() {
		t.Fatal("another user's key must not be touched")
	}
}

func TestServiceListRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := storemem.New()
	for i := 0; i < 5; i++ {
		if _, err := s.ServiceCreate(ctx, model.Service{ID: ssoid.NewServiceID(), Name: "svc"}); err != nil {
			t.Fatalf("ServiceCreate: %v", err)
		}
	}
	list, err := s.ServiceList(ctx, store.ListParams{Limit: 2})
	if err != nil {
		t.Fatalf("ServiceList: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 services with Limit=2, got %d", len(list))
	}
}
