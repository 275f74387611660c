package token_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/token"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := token.New()
	secret := []byte("a-per-user-token-key-value")
	serviceID, userID := "svc-1", "user-1"
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	tok, err := codec.Encode(secret, serviceID, userID, token.TypeAccess, expires, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	gotExpires, csrf, err := codec.Decode(secret, serviceID, userID, token.TypeAccess, tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if csrf != "" {
		t.Fatalf("access token should carry no csrf key, got %q", csrf)
	}
	if !gotExpires.Equal(expires) {
		t.Fatalf("expiry mismatch: got %v want %v", gotExpires, expires)
	}
}

func TestDecodeCarriesCsrfKeyForSingleUseTypes(t *testing.T) {
	codec := token.New()
	secret := []byte("secret")
	expires := time.Now().Add(time.Hour)

	tok, err := codec.Encode(secret, "svc", "user", token.TypeRefresh, expires, "csrf-abc")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, csrf, err := codec.Decode(secret, "svc", "user", token.TypeRefresh, tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if csrf != "csrf-abc" {
		t.Fatalf("csrf key mismatch: got %q want %q", csrf, "csrf-abc")
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	codec := token.New()
	expires := time.Now().Add(time.Hour)
	tok, err := codec.Encode([]byte("secret-a"), "svc", "user", token.TypeAccess, expires, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, _, err := codec.Decode([]byte("secret-b"), "svc", "user", token.TypeAccess, tok); err == nil {
		t.Fatal("Decode should reject a token signed with a different secret")
	}
}

func TestDecodeRejectsIssuerMismatch(t *testing.T) {
	codec := token.New()
	secret := []byte("secret")
	expires := time.Now().Add(time.Hour)
	tok, err := codec.Encode(secret, "svc-a", "user", token.TypeAccess, expires, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, _, err := codec.Decode(secret, "svc-b", "user", token.TypeAccess, tok); err == nil {
		t.Fatal("Decode should reject an issuer mismatch")
	}
}

func TestDecodeRejectsTypeMismatch(t *testing.T) {
	codec := token.New()
	secret := []byte("secret")
	expires := time.Now().Add(time.Hour)
	tok, err := codec.Encode(secret, "svc", "user", token.TypeAccess, expires, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, _, err := codec.Decode(secret, "svc", "user", token.TypeRefresh, tok); err == nil {
		t.Fatal("Decode should reject a claim-type mismatch")
	}
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	codec := token.New()
	secret := []byte("secret")
	tok, err := codec.Encode(secret, "svc", "user", token.TypeAccess, time.Now().Add(-time.Minute), "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, _, err := codec.Decode(secret, "svc", "user", token.TypeAccess, tok); err == nil {
		t.Fatal("Decode should reject an expired token")
	}
}

func TestDecodeUnsafeDoesNotRequireSecret(t *testing.T) {
	codec := token.New()
	tok, err := codec.Encode([]byte("whatever-secret"), "svc", "user-77", token.TypeRefresh, time.Now().Add(time.Hour), "csrf")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	userID, typ, err := codec.DecodeUnsafe(tok)
	if err != nil {
		t.Fatalf("DecodeUnsafe: %v", err)
	}
	if userID != "user-77" {
		t.Fatalf("userID mismatch: got %q", userID)
	}
	if typ != token.TypeRefresh {
		t.Fatalf("type mismatch: got %q", typ)
	}
}
