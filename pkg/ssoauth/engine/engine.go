// Package engine implements the auth engine (C7): the state machine for
// login, token verify/refresh/revoke, key verify/revoke, password
// reset/update, email update, TOTP, and OAuth2 login.
//
// This is grounded function-for-function on
// original_source/sso/src/core/auth.rs: method shapes, the checked vs
// unchecked read distinction, and audit call placement all mirror it.
package engine

import (
	"context"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/audit"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/csrf"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/password"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/token"
	"github.com/pquerna/otp/totp"
)

// Config holds the TTLs the engine mints tokens and CSRF keys with.
type Config struct {
	AccessTokenTTL               time.Duration
	RefreshTokenTTL              time.Duration
	ResetPasswordTokenTTL        time.Duration
	UpdateEmailRevokeTokenTTL    time.Duration
	UpdatePasswordRevokeTokenTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		AccessTokenTTL:               15 * time.Minute,
		RefreshTokenTTL:              7 * 24 * time.Hour,
		ResetPasswordTokenTTL:        1 * time.Hour,
		UpdateEmailRevokeTokenTTL:    7 * 24 * time.Hour,
		UpdatePasswordRevokeTokenTTL: 7 * 24 * time.Hour,
	}
}

// Notifier is the fire-and-forget email collaborator (C8). The engine
// never blocks on it and never fails an operation because of it — a
// submission failure becomes a logged warning, per spec's concurrency
// model for notify-dispatcher submission.
type Notifier interface {
	SendResetPassword(ctx context.Context, svc model.Service, user model.User, resetToken string)
	SendUpdateEmail(ctx context.Context, svc model.Service, user model.User, oldEmail, revokeToken string)
	SendUpdatePassword(ctx context.Context, svc model.Service, user model.User, revokeToken string)
}

// AuditData is client-supplied annotation attached to verify/revoke/
// refresh calls and recorded verbatim alongside the engine's own
// terminal audit record.
type AuditData struct {
	Type string
	Data []byte
}

// UserToken is the access+refresh pair minted on login, refresh, and
// OAuth2 login.
type UserToken struct {
	User                model.User
	AccessToken         string
	AccessTokenExpires  time.Time
	RefreshToken        string
	RefreshTokenExpires time.Time
}

// UserKeyResult is returned by KeyVerify.
type UserKeyResult struct {
	User     model.User
	KeyValue string
}

// TokenVerifyResult is returned by TokenVerify.
type TokenVerifyResult struct {
	User               model.User
	AccessToken        string
	AccessTokenExpires time.Time
}

// Engine is the state machine. A single Engine value is shared across
// requests; all per-request state lives in the audit.Builder callers
// pass in.
type Engine struct {
	store    store.Store
	csrf     *csrf.Registry
	hasher   *password.Hasher
	codec    token.Codec
	notifier Notifier
	cfg      Config
}

func New(s store.Store, hasher *password.Hasher, notifier Notifier, cfg Config) *Engine {
	return &Engine{
		store:    s,
		csrf:     csrf.New(s),
		hasher:   hasher,
		codec:    token.New(),
		notifier: notifier,
		cfg:      cfg,
	}
}

// --- 4.7.1 common preconditions -------------------------------------------------

func (e *Engine) userReadByEmailChecked(ctx context.Context, b *audit.Builder, email string) (*model.User, error) {
	user, err := e.store.UserReadByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return e.gateUser(ctx, b, user, true)
}

func (e *Engine) userReadByIDChecked(ctx context.Context, b *audit.Builder, id ssoid.UserID) (*model.User, error) {
	user, err := e.store.UserRead(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.gateUser(ctx, b, user, true)
}

func (e *Engine) userReadByIDUnchecked(ctx context.Context, b *audit.Builder, id ssoid.UserID) (*model.User, error) {
	user, err := e.store.UserRead(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.gateUser(ctx, b, user, false)
}

func (e *Engine) gateUser(ctx context.Context, b *audit.Builder, user *model.User, checkEnabled bool) (*model.User, error) {
	if user == nil {
		b.CreateInternal(ctx, model.AuditUserNotFound, nil)
		return nil, ssoerr.BadRequest("user not found")
	}
	if checkEnabled && !user.IsEnabled {
		b.CreateInternal(ctx, model.AuditUserDisabled, nil)
		return nil, ssoerr.BadRequest("user disabled")
	}
	return user, nil
}

func (e *Engine) keyReadByUserChecked(ctx context.Context, b *audit.Builder, serviceID ssoid.ServiceID, userID ssoid.UserID, t model.KeyType) (*model.Key, error) {
	key, err := e.store.KeyReadByUser(ctx, serviceID, userID, t)
	if err != nil {
		return nil, err
	}
	return e.gateKey(ctx, b, key, true)
}

func (e *Engine) keyReadByUserUnchecked(ctx context.Context, b *audit.Builder, serviceID ssoid.ServiceID, userID ssoid.UserID, t model.KeyType) (*model.Key, error) {
	key, err := e.store.KeyReadByUser(ctx, serviceID, userID, t)
	if err != nil {
		return nil, err
	}
	return e.gateKey(ctx, b, key, false)
}

// keyReadByValue looks a key up by its bearer value, additionally
// requiring it belong to serviceID and carry type t — this is what
// keeps a key issued under one service from verifying under another
// (spec §8 cross-service isolation).
func (e *Engine) keyReadByValue(ctx context.Context, b *audit.Builder, serviceID ssoid.ServiceID, value string, t model.KeyType, checkEnabled bool) (*model.Key, error) {
	key, err := e.store.KeyReadByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if key != nil && (key.Type != t || key.ServiceID == nil || *key.ServiceID != serviceID) {
		key = nil
	}
	return e.gateKey(ctx, b, key, checkEnabled)
}

func (e *Engine) gateKey(ctx context.Context, b *audit.Builder, key *model.Key, checkEnabled bool) (*model.Key, error) {
	if key == nil {
		b.CreateInternal(ctx, model.AuditKeyNotFound, nil)
		return nil, ssoerr.BadRequest("key not found")
	}
	if checkEnabled && !key.Usable() {
		b.CreateInternal(ctx, model.AuditKeyDisabledOrRevoked, nil)
		return nil, ssoerr.BadRequest("key disabled or revoked")
	}
	return key, nil
}

func (e *Engine) attachAuditData(ctx context.Context, b *audit.Builder, ad *AuditData) {
	if ad == nil {
		return
	}
	b.CreateUnchecked(ctx, ad.Type, ad.Data)
}

func (e *Engine) encodeUserToken(ctx context.Context, svc model.Service, user model.User, tokenKey model.Key) (UserToken, error) {
	now := time.Now()
	accessExpires := now.Add(e.cfg.AccessTokenTTL)
	refreshExpires := now.Add(e.cfg.RefreshTokenTTL)

	csrfKey, err := e.csrf.Create(ctx, svc.ID, e.cfg.RefreshTokenTTL)
	if err != nil {
		return UserToken{}, err
	}

	secret := []byte(tokenKey.Value)
	access, err := e.codec.Encode(secret, svc.ID.String(), user.ID.String(), token.TypeAccess, accessExpires, "")
	if err != nil {
		return UserToken{}, err
	}
	refresh, err := e.codec.Encode(secret, svc.ID.String(), user.ID.String(), token.TypeRefresh, refreshExpires, csrfKey)
	if err != nil {
		return UserToken{}, err
	}

	return UserToken{
		User:                user,
		AccessToken:         access,
		AccessTokenExpires:  accessExpires,
		RefreshToken:        refresh,
		RefreshTokenExpires: refreshExpires,
	}, nil
}

// --- 4.7.2 Login ------------------------------------------------------------

func (e *Engine) Login(ctx context.Context, svc model.Service, b *audit.Builder, email, plainPassword string) (UserToken, error) {
	user, err := e.userReadByEmailChecked(ctx, b, email)
	if err != nil {
		return UserToken{}, err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return UserToken{}, err
	}
	b.SetUserKey(tokenKey.ID)

	if user.PasswordRequireUpdate {
		b.CreateInternal(ctx, model.AuditPasswordUpdateRequired, nil)
		return UserToken{}, ssoerr.Forbidden("password update required")
	}

	if !password.Verify(user.PasswordHash, plainPassword) {
		b.CreateInternal(ctx, model.AuditPasswordNotSetOrWrong, nil)
		return UserToken{}, ssoerr.BadRequest("password not set or incorrect")
	}

	ut, err := e.encodeUserToken(ctx, svc, *user, *tokenKey)
	if err != nil {
		return UserToken{}, err
	}
	b.CreateInternal(ctx, model.AuditLogin, nil)
	return ut, nil
}

// --- 4.7.3 Token verify -------------------------------------------------------

func (e *Engine) TokenVerify(ctx context.Context, svc model.Service, b *audit.Builder, tokenStr string, ad *AuditData) (TokenVerifyResult, error) {
	userID, _, err := e.codec.DecodeUnsafe(tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return TokenVerifyResult{}, ssoerr.BadRequest("token invalid or expired")
	}
	uid, err := ssoid.ParseUserID(userID)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return TokenVerifyResult{}, ssoerr.BadRequest("token invalid or expired")
	}

	user, err := e.userReadByIDChecked(ctx, b, uid)
	if err != nil {
		return TokenVerifyResult{}, err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return TokenVerifyResult{}, err
	}
	b.SetUserKey(tokenKey.ID)

	expires, _, err := e.codec.Decode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(), token.TypeAccess, tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return TokenVerifyResult{}, ssoerr.BadRequest("token invalid or expired")
	}

	e.attachAuditData(ctx, b, ad)
	return TokenVerifyResult{User: *user, AccessToken: tokenStr, AccessTokenExpires: expires}, nil
}

// --- 4.7.4 Token refresh -------------------------------------------------------

func (e *Engine) TokenRefresh(ctx context.Context, svc model.Service, b *audit.Builder, tokenStr string, ad *AuditData) (UserToken, error) {
	userID, _, err := e.codec.DecodeUnsafe(tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return UserToken{}, ssoerr.BadRequest("token invalid or expired")
	}
	uid, err := ssoid.ParseUserID(userID)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return UserToken{}, ssoerr.BadRequest("token invalid or expired")
	}

	user, err := e.userReadByIDChecked(ctx, b, uid)
	if err != nil {
		return UserToken{}, err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return UserToken{}, err
	}
	b.SetUserKey(tokenKey.ID)

	_, csrfKey, err := e.codec.Decode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(), token.TypeRefresh, tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return UserToken{}, ssoerr.BadRequest("token invalid or expired")
	}

	ok, err := e.csrf.Consume(ctx, csrfKey, svc.ID)
	if err != nil {
		return UserToken{}, err
	}
	if !ok {
		b.CreateInternal(ctx, model.AuditCsrfNotFoundOrUsed, nil)
		return UserToken{}, ssoerr.BadRequest("csrf not found or used")
	}

	ut, err := e.encodeUserToken(ctx, svc, *user, *tokenKey)
	if err != nil {
		return UserToken{}, err
	}
	e.attachAuditData(ctx, b, ad)
	b.CreateInternal(ctx, model.AuditTokenRefresh, nil)
	return ut, nil
}

// --- 4.7.5 Token revoke -------------------------------------------------------

func (e *Engine) TokenRevoke(ctx context.Context, svc model.Service, b *audit.Builder, tokenStr string, ad *AuditData) error {
	userID, actualType, err := e.codec.DecodeUnsafe(tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return ssoerr.BadRequest("token invalid or expired")
	}
	uid, err := ssoid.ParseUserID(userID)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return ssoerr.BadRequest("token invalid or expired")
	}

	user, err := e.userReadByIDUnchecked(ctx, b, uid)
	if err != nil {
		return err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserUnchecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return err
	}
	b.SetUserKey(tokenKey.ID)

	_, csrfKey, err := e.codec.Decode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(), actualType, tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return ssoerr.BadRequest("token invalid or expired")
	}

	if csrfKey != "" {
		// Best-effort: consume the bound CSRF if one exists and don't
		// fail the revoke if it's already gone, but reject a CSRF that
		// is bound to another service.
		c, err := e.store.CsrfReadOpt(ctx, csrfKey)
		if err == nil && c != nil && c.ServiceID != svc.ID {
			b.CreateInternal(ctx, model.AuditCsrfNotFoundOrUsed, nil)
			return ssoerr.BadRequest("csrf not found or used")
		}
	}

	tokenKey.IsEnabled = false
	tokenKey.IsRevoked = true
	if _, err := e.store.KeyUpdate(ctx, *tokenKey); err != nil {
		return err
	}

	e.attachAuditData(ctx, b, ad)
	b.CreateInternal(ctx, model.AuditTokenRevoke, nil)
	return nil
}

// --- 4.7.6 Key verify -------------------------------------------------------

func (e *Engine) KeyVerify(ctx context.Context, svc model.Service, b *audit.Builder, keyValue string, ad *AuditData) (UserKeyResult, error) {
	key, err := e.keyReadByValue(ctx, b, svc.ID, keyValue, model.KeyTypeKey, true)
	if err != nil {
		return UserKeyResult{}, err
	}
	if key.UserID == nil {
		b.CreateInternal(ctx, model.AuditKeyNotFound, nil)
		return UserKeyResult{}, ssoerr.BadRequest("key not found")
	}
	b.SetKey(key.ID)

	user, err := e.userReadByIDChecked(ctx, b, *key.UserID)
	if err != nil {
		return UserKeyResult{}, err
	}
	b.SetUser(user.ID)

	e.attachAuditData(ctx, b, ad)
	return UserKeyResult{User: *user, KeyValue: key.Value}, nil
}

// --- 4.7.7 Key revoke -------------------------------------------------------

func (e *Engine) KeyRevoke(ctx context.Context, svc model.Service, b *audit.Builder, keyValue string, ad *AuditData) error {
	key, err := e.keyReadByValue(ctx, b, svc.ID, keyValue, model.KeyTypeKey, false)
	if err != nil {
		return err
	}
	b.SetKey(key.ID)
	if key.UserID != nil {
		b.SetUser(*key.UserID)
	}

	key.IsEnabled = false
	key.IsRevoked = true
	if _, err := e.store.KeyUpdate(ctx, *key); err != nil {
		return err
	}

	e.attachAuditData(ctx, b, ad)
	b.CreateInternal(ctx, model.AuditKeyRevoke, nil)
	return nil
}

// --- 4.7.8 / 4.7.9 Reset password -------------------------------------------

// ResetPasswordRequest never signals whether the email exists: every
// internal error (unknown email, reset disallowed, store failure) is
// swallowed and the call returns ok. This is the sole swallowing path
// in the engine (spec §7).
func (e *Engine) ResetPasswordRequest(ctx context.Context, svc model.Service, b *audit.Builder, email string) {
	if err := e.resetPasswordRequestInner(ctx, svc, b, email); err != nil {
		b.CreateInternal(ctx, model.AuditResetPasswordError, nil)
	}
}

func (e *Engine) resetPasswordRequestInner(ctx context.Context, svc model.Service, b *audit.Builder, email string) error {
	user, err := e.userReadByEmailChecked(ctx, b, email)
	if err != nil {
		return err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return err
	}
	b.SetUserKey(tokenKey.ID)

	if !user.PasswordAllowReset {
		return ssoerr.Forbidden("password reset not allowed")
	}

	csrfKey, err := e.csrf.Create(ctx, svc.ID, e.cfg.ResetPasswordTokenTTL)
	if err != nil {
		return err
	}
	resetToken, err := e.codec.Encode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(),
		token.TypeResetPassword, time.Now().Add(e.cfg.ResetPasswordTokenTTL), csrfKey)
	if err != nil {
		return err
	}

	b.CreateInternal(ctx, model.AuditResetPassword, nil)
	e.notifier.SendResetPassword(ctx, svc, *user, resetToken)
	return nil
}

func (e *Engine) ResetPasswordConfirm(ctx context.Context, svc model.Service, b *audit.Builder, tokenStr, newPassword string) error {
	userID, _, err := e.codec.DecodeUnsafe(tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return ssoerr.BadRequest("token invalid or expired")
	}
	uid, err := ssoid.ParseUserID(userID)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return ssoerr.BadRequest("token invalid or expired")
	}

	user, err := e.userReadByIDChecked(ctx, b, uid)
	if err != nil {
		return err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return err
	}
	b.SetUserKey(tokenKey.ID)

	if !user.PasswordAllowReset {
		return ssoerr.Forbidden("password reset not allowed")
	}

	_, csrfKey, err := e.codec.Decode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(), token.TypeResetPassword, tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return ssoerr.BadRequest("token invalid or expired")
	}

	ok, err := e.csrf.Consume(ctx, csrfKey, svc.ID)
	if err != nil {
		return err
	}
	if !ok {
		b.CreateInternal(ctx, model.AuditCsrfNotFoundOrUsed, nil)
		return ssoerr.BadRequest("csrf not found or used")
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = &hash
	user.PasswordRequireUpdate = false
	if _, err := e.store.UserUpdate(ctx, *user); err != nil {
		return err
	}

	b.CreateInternal(ctx, model.AuditResetPasswordConfirm, nil)
	return nil
}

// --- 4.7.10 / 4.7.11 Update email --------------------------------------------

func (e *Engine) UpdateEmail(ctx context.Context, svc model.Service, b *audit.Builder, userID ssoid.UserID, currentPassword, newEmail string) (model.User, error) {
	user, err := e.userReadByIDChecked(ctx, b, userID)
	if err != nil {
		return model.User{}, err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return model.User{}, err
	}
	b.SetUserKey(tokenKey.ID)

	if user.PasswordRequireUpdate {
		b.CreateInternal(ctx, model.AuditPasswordUpdateRequired, nil)
		return model.User{}, ssoerr.Forbidden("password update required")
	}
	if !password.Verify(user.PasswordHash, currentPassword) {
		b.CreateInternal(ctx, model.AuditPasswordNotSetOrWrong, nil)
		return model.User{}, ssoerr.BadRequest("password not set or incorrect")
	}

	csrfKey, err := e.csrf.Create(ctx, svc.ID, e.cfg.UpdateEmailRevokeTokenTTL)
	if err != nil {
		return model.User{}, err
	}
	revokeToken, err := e.codec.Encode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(),
		token.TypeUpdateEmailRevoke, time.Now().Add(e.cfg.UpdateEmailRevokeTokenTTL), csrfKey)
	if err != nil {
		return model.User{}, err
	}

	oldEmail := user.Email
	user.Email = newEmail
	updated, err := e.store.UserUpdate(ctx, *user)
	if err != nil {
		return model.User{}, err
	}

	b.CreateInternal(ctx, model.AuditUpdateEmail, nil)
	e.notifier.SendUpdateEmail(ctx, svc, updated, oldEmail, revokeToken)
	return updated, nil
}

func (e *Engine) UpdateEmailRevoke(ctx context.Context, svc model.Service, b *audit.Builder, tokenStr string) (int, error) {
	return e.revokeViaToken(ctx, svc, b, tokenStr, token.TypeUpdateEmailRevoke, model.AuditUpdateEmailRevoke, true)
}

// --- 4.7.12 Update password / update password revoke -------------------------

func (e *Engine) UpdatePassword(ctx context.Context, svc model.Service, b *audit.Builder, userID ssoid.UserID, currentPassword, newPassword string) (model.User, error) {
	user, err := e.userReadByIDChecked(ctx, b, userID)
	if err != nil {
		return model.User{}, err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return model.User{}, err
	}
	b.SetUserKey(tokenKey.ID)

	// Unlike UpdateEmail, a password_require_update user IS allowed
	// through here — this is the one legitimate way to clear the flag.
	if !password.Verify(user.PasswordHash, currentPassword) {
		b.CreateInternal(ctx, model.AuditPasswordNotSetOrWrong, nil)
		return model.User{}, ssoerr.BadRequest("password not set or incorrect")
	}

	csrfKey, err := e.csrf.Create(ctx, svc.ID, e.cfg.UpdatePasswordRevokeTokenTTL)
	if err != nil {
		return model.User{}, err
	}
	revokeToken, err := e.codec.Encode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(),
		token.TypeUpdatePasswordRevoke, time.Now().Add(e.cfg.UpdatePasswordRevokeTokenTTL), csrfKey)
	if err != nil {
		return model.User{}, err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return model.User{}, err
	}
	user.PasswordHash = &hash
	user.PasswordRequireUpdate = false
	updated, err := e.store.UserUpdate(ctx, *user)
	if err != nil {
		return model.User{}, err
	}

	b.CreateInternal(ctx, model.AuditUpdatePassword, nil)
	e.notifier.SendUpdatePassword(ctx, svc, updated, revokeToken)
	return updated, nil
}

func (e *Engine) UpdatePasswordRevoke(ctx context.Context, svc model.Service, b *audit.Builder, tokenStr string) (int, error) {
	return e.revokeViaToken(ctx, svc, b, tokenStr, token.TypeUpdatePasswordRevoke, model.AuditUpdatePasswordRevoke, true)
}

// revokeViaToken is the shared body of update_email_revoke and
// update_password_revoke: decode unsafe, unchecked user+key reads,
// verified decode of the expected revoke type, CSRF consume, then
// disable the user and revoke every one of their keys.
func (e *Engine) revokeViaToken(ctx context.Context, svc model.Service, b *audit.Builder, tokenStr string, expected token.Type, auditType string, disableUser bool) (int, error) {
	userID, _, err := e.codec.DecodeUnsafe(tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return 0, ssoerr.BadRequest("token invalid or expired")
	}
	uid, err := ssoid.ParseUserID(userID)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return 0, ssoerr.BadRequest("token invalid or expired")
	}

	user, err := e.userReadByIDUnchecked(ctx, b, uid)
	if err != nil {
		return 0, err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserUnchecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return 0, err
	}
	b.SetUserKey(tokenKey.ID)

	_, csrfKey, err := e.codec.Decode([]byte(tokenKey.Value), svc.ID.String(), user.ID.String(), expected, tokenStr)
	if err != nil {
		b.CreateInternal(ctx, model.AuditTokenInvalidOrExpired, nil)
		return 0, ssoerr.BadRequest("token invalid or expired")
	}

	ok, err := e.csrf.Consume(ctx, csrfKey, svc.ID)
	if err != nil {
		return 0, err
	}
	if !ok {
		b.CreateInternal(ctx, model.AuditCsrfNotFoundOrUsed, nil)
		return 0, ssoerr.BadRequest("csrf not found or used")
	}

	if disableUser {
		user.IsEnabled = false
		if _, err := e.store.UserUpdate(ctx, *user); err != nil {
			return 0, err
		}
	}

	revoked, err := e.store.KeyUpdateManyByUser(ctx, user.ID)
	if err != nil {
		return 0, err
	}

	b.CreateInternal(ctx, auditType, nil)
	return revoked + 1, nil
}

// --- 4.7.13 TOTP --------------------------------------------------------------

func (e *Engine) Totp(ctx context.Context, svc model.Service, b *audit.Builder, userID ssoid.UserID, code string) error {
	user, err := e.userReadByIDChecked(ctx, b, userID)
	if err != nil {
		return err
	}
	b.SetUser(user.ID)

	totpKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeTotp)
	if err != nil {
		return err
	}
	b.SetUserKey(totpKey.ID)

	valid, err := totp.ValidateCustom(code, totpKey.Value, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    6,
		Algorithm: totp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		b.CreateInternal(ctx, model.AuditTotpInvalid, nil)
		return ssoerr.BadRequest("totp invalid")
	}
	return nil
}

// --- 4.7.14 OAuth2 login -------------------------------------------------------

func (e *Engine) OAuth2Login(ctx context.Context, svc model.Service, b *audit.Builder, flowServiceID ssoid.ServiceID, email string) (UserToken, error) {
	if flowServiceID != svc.ID {
		b.CreateInternal(ctx, model.AuditServiceMismatch, nil)
		return UserToken{}, ssoerr.BadRequest("service mismatch")
	}

	user, err := e.userReadByEmailChecked(ctx, b, email)
	if err != nil {
		return UserToken{}, err
	}
	b.SetUser(user.ID)

	tokenKey, err := e.keyReadByUserChecked(ctx, b, svc.ID, user.ID, model.KeyTypeToken)
	if err != nil {
		return UserToken{}, err
	}
	b.SetUserKey(tokenKey.ID)

	ut, err := e.encodeUserToken(ctx, svc, *user, *tokenKey)
	if err != nil {
		return UserToken{}, err
	}
	b.CreateInternal(ctx, model.AuditOauth2Login, nil)
	return ut, nil
}
