// Package model holds the entities the auth engine operates on: Service,
// User, Key, Csrf and Audit.
package model

import (
	"encoding/json"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
)

// Service is an integration tenant and the authority boundary: every
// non-root operation is scoped to exactly one service.
type Service struct {
	ID                         ssoid.ServiceID
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
	IsEnabled                  bool
	Name                       string
	URL                        string
	ProviderLocalURL           *string
	ProviderGithubOAuth2URL    *string
	ProviderMicrosoftOAuth2URL *string
}

// User is an end identity. Users are not sub-partitioned by service;
// access is mediated entirely through Key rows.
type User struct {
	ID                    ssoid.UserID
	CreatedAt             time.Time
	UpdatedAt             time.Time
	IsEnabled             bool
	Name                  string
	Email                 string
	Locale                string
	Timezone              string
	PasswordAllowReset    bool
	PasswordRequireUpdate bool
	PasswordHash          *string
}

// KeyType distinguishes the three credential shapes a Key row can take.
// Combined with whether ServiceID/UserID are set, it yields the four
// logical key kinds: root (neither set), service (service only), user
// token/api-key/totp (both set, differing by Type).
type KeyType string

const (
	KeyTypeKey   KeyType = "Key"
	KeyTypeToken KeyType = "Token"
	KeyTypeTotp  KeyType = "Totp"
)

// Key is a credential binding. For a given (ServiceID, UserID, Type) at
// most one Key is ever enabled and not revoked at a time.
type Key struct {
	ID        ssoid.KeyID
	CreatedAt time.Time
	UpdatedAt time.Time
	IsEnabled bool
	IsRevoked bool
	Name      string
	Value     string
	Type      KeyType
	ServiceID *ssoid.ServiceID
	UserID    *ssoid.UserID
}

// IsRoot reports whether this key is a service-less, user-less
// administrative credential.
func (k Key) IsRoot() bool { return k.ServiceID == nil && k.UserID == nil }

// IsServiceKey reports whether this key authorises a service (no user).
func (k Key) IsServiceKey() bool { return k.ServiceID != nil && k.UserID == nil }

// IsUserKey reports whether this key is bound to a specific user under a
// specific service.
func (k Key) IsUserKey() bool { return k.ServiceID != nil && k.UserID != nil }

// Usable reports whether the key may still be used for anything: it
// must be enabled and must never have been revoked.
func (k Key) Usable() bool { return k.IsEnabled && !k.IsRevoked }

// Csrf is a single-use nonce. A record may be read at most once: reading
// deletes it. Expired records are swept on read.
type Csrf struct {
	CreatedAt time.Time
	Key       string
	Value     string
	TTL       time.Time
	ServiceID ssoid.ServiceID
}

// Audit is an immutable, append-only event.
type Audit struct {
	ID        ssoid.AuditID
	CreatedAt time.Time
	UserAgent string
	Remote    string
	Forwarded *string
	Type      string
	Data      json.RawMessage
	KeyID     *ssoid.KeyID
	ServiceID *ssoid.ServiceID
	UserID    *ssoid.UserID
	UserKeyID *ssoid.KeyID
}

// Audit type tags. The engine writes exactly one of these on every
// terminal decision (spec §7).
const (
	AuditLogin                   = "Login"
	AuditPasswordUpdateRequired  = "PasswordUpdateRequired"
	AuditPasswordNotSetOrWrong   = "PasswordNotSetOrIncorrect"
	AuditTokenInvalidOrExpired   = "TokenInvalidOrExpired"
	AuditTokenRefresh            = "TokenRefresh"
	AuditTokenRevoke             = "TokenRevoke"
	AuditKeyNotFound             = "KeyNotFound"
	AuditKeyDisabledOrRevoked    = "KeyDisabledOrRevoked"
	AuditKeyRevoke               = "KeyRevoke"
	AuditResetPassword           = "ResetPassword"
	AuditResetPasswordError      = "ResetPasswordError"
	AuditResetPasswordConfirm    = "ResetPasswordConfirm"
	AuditUpdateEmail             = "UpdateEmail"
	AuditUpdateEmailRevoke       = "UpdateEmailRevoke"
	AuditUpdatePassword          = "UpdatePassword"
	AuditUpdatePasswordRevoke    = "UpdatePasswordRevoke"
	AuditTotpInvalid             = "TotpInvalid"
	AuditServiceMismatch         = "ServiceMismatch"
	AuditServiceNotFound         = "ServiceNotFound"
	AuditServiceDisabled         = "ServiceDisabled"
	AuditOauth2Login             = "Oauth2Login"
	AuditUserNotFound            = "UserNotFound"
	AuditUserDisabled            = "UserDisabled"
	AuditCsrfNotFoundOrUsed      = "CsrfNotFoundOrUsed"
)
