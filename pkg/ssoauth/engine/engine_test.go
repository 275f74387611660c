package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/audit"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/engine"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/password"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store/storemem"
)

// recordingNotifier captures every send so scenario tests can assert an
// email was (or wasn't) dispatched without standing up a real provider.
type recordingNotifier struct {
	resetPasswordTokens []string
	updateEmailTokens    []string
	updatePasswordTokens []string
}

func (n *recordingNotifier) SendResetPassword(_ context.Context, _ model.Service, _ model.User, resetToken string) {
	n.resetPasswordTokens = append(n.resetPasswordTokens, resetToken)
}

func (n *recordingNotifier) SendUpdateEmail(_ context.Context, _ model.Service, _ model.User, _, revokeToken string) {
	n.updateEmailTokens = append(n.updateEmailTokens, revokeToken)
}

func (n *recordingNotifier) SendUpdatePassword(_ context.Context, _ model.Service, _ model.User, revokeToken string) {
	n.updatePasswordTokens = append(n.updatePasswordTokens, revokeToken)
}

const testPlainPassword = "correct horse battery staple"

type testEnv struct {
	store    *storemem.Store
	notifier *recordingNotifier
	engine   *engine.Engine
	svc      model.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := storemem.New()
	notifier := &recordingNotifier{}
	hasher := password.New(password.Params{Memory: 8 * 1024, Time: 1, Threads: 2, SaltLen: 16, KeyLen: 32})
	cfg := engine.Config{
		AccessTokenTTL:               15 * time.Minute,
		RefreshTokenTTL:              time.Hour,
		ResetPasswordTokenTTL:        time.Hour,
		UpdateEmailRevokeTokenTTL:    time.Hour,
		UpdatePasswordRevokeTokenTTL: time.Hour,
	}
	eng := engine.New(s, hasher, notifier, cfg)

	ctx := context.Background()
	svc, err := s.ServiceCreate(ctx, model.Service{ID: ssoid.NewServiceID(), IsEnabled: true, Name: "acme"})
	if err != nil {
		t.Fatalf("ServiceCreate: %v", err)
	}

	return &testEnv{store: s, notifier: notifier, engine: eng, svc: svc}
}

func (e *testEnv) builder(t *testing.T) *audit.Builder {
	t.Helper()
	return audit.New(e.store, audit.Meta{UserAgent: "go-test", Remote: "127.0.0.1"})
}

// newUser creates a user plus its user-token key under e.svc, with
// PasswordHash set to the hash of testPlainPassword.
func (e *testEnv) newUser(t *testing.T, configure func(*model.User)) (model.User, model.Key) {
	t.Helper()
	ctx := context.Background()
	hasher := password.New(password.Params{Memory: 8 * 1024, Time: 1, Threads: 2, SaltLen: 16, KeyLen: 32})
	hash, err := hasher.Hash(testPlainPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	u := model.User{
		ID:                 ssoid.NewUserID(),
		IsEnabled:          true,
		Name:               "Ada",
		Email:              "ada@example.com",
		PasswordAllowReset: true,
		PasswordHash:       &hash,
	}
	if configure != nil {
		configure(&u)
	}
	u, err = e.store.UserCreate(ctx, u)
	if err != nil {
		t.Fatalf("UserCreate: %v", err)
	}

	svcID, userID := e.svc.ID, u.ID
	key := model.Key{
		ID:        ssoid.NewKeyID(),
		IsEnabled: true,
		Name:      "token",
		Value:     ssoid.NewValue(),
		Type:      model.KeyTypeToken,
		ServiceID: &svcID,
		UserID:    &userID,
	}
	key, err = e.store.KeyCreate(ctx, key)
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}
	return u, key
}

// --- Login happy path -------------------------------------------------

func TestLoginHappyPath(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.newUser(t, nil)
	ctx := context.Background()

	ut, err := env.engine.Login(ctx, env.svc, env.builder(t), user.Email, testPlainPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if ut.AccessToken == "" || ut.RefreshToken == "" {
		t.Fatal("Login should mint both an access and a refresh token")
	}
	if ut.User.ID != user.ID {
		t.Fatalf("returned user mismatch: got %v want %v", ut.User.ID, user.ID)
	}

	audits, err := env.store.AuditList(ctx, store.AuditListParams{})
	if err != nil {
		t.Fatalf("AuditList: %v", err)
	}
	if len(audits) != 1 || audits[0].Type != model.AuditLogin {
		t.Fatalf("expected exactly one Login audit record, got %+v", audits)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.newUser(t, nil)
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, env.svc, env.builder(t), user.Email, "not the password"); err == nil {
		t.Fatal("Login should reject an incorrect password")
	}
}

func TestLoginRejectsPasswordRequireUpdate(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.newUser(t, func(u *model.User) { u.PasswordRequireUpdate = true })
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, env.svc, env.builder(t), user.Email, testPlainPassword); err == nil {
		t.Fatal("Login should reject a user whose password must first be updated")
	}
}

// --- Token refresh exhausts its CSRF key -------------------------------

func TestTokenRefreshConsumesItsCsrfKeyExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.newUser(t, nil)
	ctx := context.Background()

	ut, err := env.engine.Login(ctx, env.svc, env.builder(t), user.Email, testPlainPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	refreshed, err := env.engine.TokenRefresh(ctx, env.svc, env.builder(t), ut.RefreshToken, nil)
	if err != nil {
		t.Fatalf("first TokenRefresh should succeed: %v", err)
	}
	if refreshed.RefreshToken == ut.RefreshToken {
		t.Fatal("TokenRefresh should mint a new refresh token bound to a new csrf key, not reuse the old one")
	}

	if _, err := env.engine.TokenRefresh(ctx, env.svc, env.builder(t), ut.RefreshToken, nil); err == nil {
		t.Fatal("reusing a refresh token's csrf key a second time must fail")
	}
}

// --- Key revoke cascades -----------------------------------------------

func TestKeyRevokeDisablesTheKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svcID := env.svc.ID
	apiKey := model.Key{
		ID:        ssoid.NewKeyID(),
		IsEnabled: true,
		Name:      "api-key",
		Value:     ssoid.NewValue(),
		Type:      model.KeyTypeKey,
		ServiceID: &svcID,
	}
	userID := ssoid.NewUserID()
	apiKey.UserID = &userID
	apiKey, err := env.store.KeyCreate(ctx, apiKey)
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}
	if _, err := env.store.UserCreate(ctx, model.User{ID: userID, IsEnabled: true, Email: "bound@example.com"}); err != nil {
		t.Fatalf("UserCreate: %v", err)
	}

	if err := env.engine.KeyRevoke(ctx, env.svc, env.builder(t), apiKey.Value, nil); err != nil {
		t.Fatalf("KeyRevoke: %v", err)
	}

	stored, err := env.store.KeyRead(ctx, apiKey.ID)
	if err != nil {
		t.Fatalf("KeyRead: %v", err)
	}
	if stored.Usable() {
		t.Fatal("a revoked key must no longer be usable")
	}

	if _, err := env.engine.KeyVerify(ctx, env.svc, env.builder(t), apiKey.Value, nil); err == nil {
		t.Fatal("KeyVerify must reject a revoked key")
	}
}

// --- Cross-service isolation --------------------------------------------

func TestKeyVerifyRejectsKeyFromAnotherService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	otherSvc, err := env.store.ServiceCreate(ctx, model.Service{ID: ssoid.NewServiceID(), IsEnabled: true, Name: "other"})
	if err != nil {
		t.Fatalf("ServiceCreate: %v", err)
	}

	userID := ssoid.NewUserID()
	if _, err := env.store.UserCreate(ctx, model.User{ID: userID, IsEnabled: true, Email: "shared@example.com"}); err != nil {
		t.Fatalf("UserCreate: %v", err)
	}
	otherSvcID := otherSvc.ID
	apiKey := model.Key{
		ID:        ssoid.NewKeyID(),
		IsEnabled: true,
		Name:      "api-key",
		Value:     ssoid.NewValue(),
		Type:      model.KeyTypeKey,
		ServiceID: &otherSvcID,
		UserID:    &userID,
	}
	apiKey, err = env.store.KeyCreate(ctx, apiKey)
	if err != nil {
		t.Fatalf("KeyCreate: %v", err)
	}

	// Verifying a key minted under otherSvc against env.svc must fail —
	// a key never authorises outside the service it was issued to.
	if _, err := env.engine.KeyVerify(ctx, env.svc, env.builder(t), apiKey.Value, nil); err == nil {
		t.Fatal("KeyVerify must reject a key issued under a different service")
	}
	// It still verifies correctly under the service it belongs to.
	if _, err := env.engine.KeyVerify(ctx, otherSvc, env.builder(t), apiKey.Value, nil); err != nil {
		t.Fatalf("KeyVerify should accept the key under its own service: %v", err)
	}
}

// --- Reset password request never leaks existence -----------------------

func TestResetPasswordRequestIsSilentForUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// ResetPasswordRequest has no error return — this call must simply
	// not panic and must not dispatch any email.
	env.engine.ResetPasswordRequest(ctx, env.svc, env.builder(t), "nobody@example.com")

	if len(env.notifier.resetPasswordTokens) != 0 {
		t.Fatal("no reset-password email should be sent for an unknown address")
	}
}

func TestResetPasswordRequestSendsTokenForKnownUser(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.newUser(t, nil)
	ctx := context.Background()

	env.engine.ResetPasswordRequest(ctx, env.svc, env.builder(t), user.Email)

	if len(env.notifier.resetPasswordTokens) != 1 {
		t.Fatalf("expected exactly one reset-password email, got %d", len(env.notifier.resetPasswordTokens))
	}

	resetToken := env.notifier.resetPasswordTokens[0]
	if err := env.engine.ResetPasswordConfirm(ctx, env.svc, env.builder(t), resetToken, "a-new-password"); err != nil {
		t.Fatalf("ResetPasswordConfirm: %v", err)
	}

	// The reset token's csrf key is single-use.
	if err := env.engine.ResetPasswordConfirm(ctx, env.svc, env.builder(t), resetToken, "another-password"); err == nil {
		t.Fatal("a reset-password token must not be confirmable twice")
	}
}

// --- Update email revoke tears down every key ---------------------------

func TestUpdateEmailRevokeDisablesUserAndAllKeys(t *testing.T) {
	env := newTestEnv(t)
	user, tokenKey := env.newUser(t, nil)
	ctx := context.Background()

	updated, err := env.engine.UpdateEmail(ctx, env.svc, env.builder(t), user.ID, testPlainPassword, "new-address@example.com")
	if err != nil {
		t.Fatalf("UpdateEmail: %v", err)
	}
	if updated.Email != "new-address@example.com" {
		t.Fatalf("email not updated: got %q", updated.Email)
	}
	if len(env.notifier.updateEmailTokens) != 1 {
		t.Fatalf("expected exactly one update-email revoke email, got %d", len(env.notifier.updateEmailTokens))
	}

	revokeToken := env.notifier.updateEmailTokens[0]
	revoked, err := env.engine.UpdateEmailRevoke(ctx, env.svc, env.builder(t), revokeToken)
	if err != nil {
		t.Fatalf("UpdateEmailRevoke: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("expected 2 (1 token key revoked + 1 for the user), got %d", revoked)
	}

	storedUser, err := env.store.UserRead(ctx, user.ID)
	if err != nil {
		t.Fatalf("UserRead: %v", err)
	}
	if storedUser.IsEnabled {
		t.Fatal("update-email revoke must disable the user")
	}

	storedKey, err := env.store.KeyRead(ctx, tokenKey.ID)
	if err != nil {
		t.Fatalf("KeyRead: %v", err)
	}
	if storedKey.Usable() {
		t.Fatal("update-email revoke must revoke the user's token key")
	}
}

func TestUpdateEmailRejectsWrongCurrentPassword(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.newUser(t, nil)
	ctx := context.Background()

	if _, err := env.engine.UpdateEmail(ctx, env.svc, env.builder(t), user.ID, "not-the-password", "x@example.com"); err == nil {
		t.Fatal("UpdateEmail should reject an incorrect current password")
	}
}
