package password_test

import (
	"testing"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/password"
)

func fastParams() password.Params {
	// Argon2id cost cranked down so the test suite doesn't spend real
	// interactive-login cost tuning CPU time on every run.
	p := password.DefaultParams()
	p.Memory = 8 * 1024
	p.Time = 1
	return p
}

func TestHashAndVerify(t *testing.T) {
	h := password.New(fastParams())
	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !password.Verify(&hash, "correct horse battery staple") {
		t.Fatal("Verify should accept the password it was hashed from")
	}
	if password.Verify(&hash, "wrong password") {
		t.Fatal("Verify should reject a wrong password")
	}
}

func TestVerifyNilHashAlwaysFails(t *testing.T) {
	if password.Verify(nil, "anything") {
		t.Fatal("Verify(nil, ...) must always fail")
	}
	empty := ""
	if password.Verify(&empty, "anything") {
		t.Fatal("Verify(&\"\", ...) must always fail")
	}
}

func TestHashIsSaltedPerCall(t *testing.T) {
	h := password.New(fastParams())
	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password should differ (random salt)")
	}
	if !password.Verify(&a, "same-password") || !password.Verify(&b, "same-password") {
		t.Fatal("both independently salted hashes should still verify")
	}
}
