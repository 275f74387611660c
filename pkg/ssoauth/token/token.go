// Package token implements the token codec (C3): short JSON claim sets
// signed with HMAC using the user's token key value as the secret.
//
// This generalises the teacher's single-secret JWTService (one secret
// per issuer, two claim shapes) to the per-(service,user) signing
// secret and five claim types the engine needs.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type enumerates the claim shapes the engine mints.
type Type string

const (
	TypeAccess               Type = "AccessToken"
	TypeRefresh              Type = "RefreshToken"
	TypeResetPassword        Type = "ResetPasswordToken"
	TypeUpdateEmailRevoke    Type = "UpdateEmailRevokeToken"
	TypeUpdatePasswordRevoke Type = "UpdatePasswordRevokeToken"
)

// Claims is the JWT claim set every token type shares. Csrf is
// present only for single-use token types (anything but AccessToken).
type Claims struct {
	Typ  Type   `json:"typ"`
	Csrf string `json:"csrf,omitempty"`
	jwt.RegisteredClaims
}

// Codec encodes/decodes tokens. It carries no state of its own; the
// signing secret is supplied per call because it is per-(service,user),
// not a single process-wide secret.
type Codec struct{}

func New() Codec { return Codec{} }

// Encode signs a claim set of the given type, issued by serviceID for
// userID, expiring at expiresAt. csrfKey is empty for multi-use token
// types (AccessToken).
func (Codec) Encode(secret []byte, serviceID, userID string, typ Type, expiresAt time.Time, csrfKey string) (string, error) {
	now := time.Now()
	claims := Claims{
		Typ:  typ,
		Csrf: csrfKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    serviceID,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

// DecodeUnsafe extracts (userID, type) without verifying the signature.
// It exists only to let the caller look up the right signing key before
// calling Decode; it must never be treated as authenticating a caller.
func (Codec) DecodeUnsafe(tokenString string) (userID string, typ Type, err error) {
	var claims Claims
	parser := jwt.NewParser()
	_, _, err = parser.ParseUnverified(tokenString, &claims)
	if err != nil {
		return "", "", fmt.Errorf("decode_unsafe: %w", err)
	}
	return claims.Subject, claims.Typ, nil
}

// Decode verifies signature, issuer, subject, type, and expiry. Returns
// the expiry and, for single-use token types, the bound CSRF key.
func (Codec) Decode(secret []byte, serviceID, userID string, expected Type, tokenString string) (expiresAt time.Time, csrfKey string, err error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decode: %w", err)
	}
	if !tok.Valid {
		return time.Time{}, "", fmt.Errorf("decode: token invalid")
	}
	if claims.Issuer != serviceID {
		return time.Time{}, "", fmt.Errorf("decode: issuer mismatch")
	}
	if claims.Subject != userID {
		return time.Time{}, "", fmt.Errorf("decode: subject mismatch")
	}
	if claims.Typ != expected {
		return time.Time{}, "", fmt.Errorf("decode: type mismatch: got %s want %s", claims.Typ, expected)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, "", fmt.Errorf("decode: missing expiry")
	}
	return claims.ExpiresAt.Time, claims.Csrf, nil
}
