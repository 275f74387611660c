package ssoid_test

import (
	"testing"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoid"
)

func TestIDRoundTrip(t *testing.T) {
	id := ssoid.NewUserID()
	parsed, err := ssoid.ParseUserID(id.String())
	if err != nil {
		t.Fatalf("ParseUserID: %v", err)
	}
	if parsed != id {
		t.Fatalf("parsed id %v != original %v", parsed, id)
	}
}

func TestParseUserIDRejectsGarbage(t *testing.T) {
	if _, err := ssoid.ParseUserID("not-a-uuid"); err == nil {
		t.Fatal("expected error parsing garbage input")
	}
}

func TestNilIDIsNil(t *testing.T) {
	if !ssoid.NilUserID.IsNil() {
		t.Fatal("NilUserID.IsNil() should be true")
	}
	if ssoid.NewUserID().IsNil() {
		t.Fatal("a freshly minted UserID should not be nil")
	}
}

func TestNewValueIsUniqueAndURLSafe(t *testing.T) {
	a := ssoid.NewValue()
	b := ssoid.NewValue()
	if a == b {
		t.Fatal("two NewValue() calls produced the same secret")
	}
	for _, r := range a {
		if r == '+' || r == '/' || r == '=' {
			t.Fatalf("NewValue() produced a non-URL-safe character: %q", a)
		}
	}
}

func TestNewTotpSecretIsBase32(t *testing.T) {
	secret := ssoid.NewTotpSecret()
	for _, r := range secret {
		isUpper := r >= 'A' && r <= 'Z'
		isDigit := r >= '2' && r <= '7'
		if !isUpper && !isDigit {
			t.Fatalf("NewTotpSecret() produced a non-base32 character: %q in %s", r, secret)
		}
	}
}
