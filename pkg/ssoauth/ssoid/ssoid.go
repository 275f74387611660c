// Package ssoid provides the opaque identifier and secret-value types
// shared across the auth/identity packages.
package ssoid

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"

	"github.com/google/uuid"
)

// ServiceID identifies a tenant service.
type ServiceID uuid.UUID

// UserID identifies a global end user.
type UserID uuid.UUID

// KeyID identifies a credential row.
type KeyID uuid.UUID

// AuditID identifies an audit record.
type AuditID uuid.UUID

// NilServiceID is the zero value, used where a field is optional.
var NilServiceID ServiceID

// NilUserID is the zero value, used where a field is optional.
var NilUserID UserID

// NilKeyID is the zero value, used where a field is optional.
var NilKeyID KeyID

// NilAuditID is the zero value, used where a field is optional.
var NilAuditID AuditID

func NewServiceID() ServiceID { return ServiceID(uuid.New()) }
func NewUserID() UserID       { return UserID(uuid.New()) }
func NewKeyID() KeyID         { return KeyID(uuid.New()) }
func NewAuditID() AuditID     { return AuditID(uuid.New()) }

func (id ServiceID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id KeyID) String() string     { return uuid.UUID(id).String() }
func (id AuditID) String() string   { return uuid.UUID(id).String() }

func (id ServiceID) IsNil() bool { return id == NilServiceID }
func (id UserID) IsNil() bool    { return id == NilUserID }
func (id KeyID) IsNil() bool     { return id == NilKeyID }
func (id AuditID) IsNil() bool   { return id == NilAuditID }

func ParseServiceID(s string) (ServiceID, error) {
	u, err := uuid.Parse(s)
	return ServiceID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	return UserID(u), err
}

func ParseKeyID(s string) (KeyID, error) {
	u, err := uuid.Parse(s)
	return KeyID(u), err
}

func ParseAuditID(s string) (AuditID, error) {
	u, err := uuid.Parse(s)
	return AuditID(u), err
}

// NewSecret draws 32 random bytes suitable for a key value, a CSRF
// key/value, or (base32-encoded) a TOTP shared secret.
func NewSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("ssoid: failed to read random bytes: " + err.Error())
	}
	return b
}

// EncodeValue is the wire representation used for Key/Token/CSRF values.
func EncodeValue(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// EncodeTotpSecret is the RFC 4648 base32 (no padding) representation
// required by RFC 6238 shared secrets.
func EncodeTotpSecret(b []byte) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
}

// NewValue generates a new opaque, base64url-encoded key/token value.
func NewValue() string {
	return EncodeValue(NewSecret())
}

// NewTotpSecret generates a new base32-encoded TOTP shared secret.
func NewTotpSecret() string {
	return EncodeTotpSecret(NewSecret())
}
