// Package password implements the one-way password hasher (C2):
// argon2id over a PHC-format encoded string, with constant-time verify.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/ssoerr"
	"golang.org/x/crypto/argon2"
)

// Params holds the argon2id cost parameters. Defaults follow the
// OWASP-recommended floor for interactive logins.
type Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

func DefaultParams() Params {
	return Params{
		Memory:  64 * 1024,
		Time:    3,
		Threads: 2,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Hasher hashes and verifies passwords using a fixed cost profile.
type Hasher struct {
	params Params
}

func New(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash returns a PHC-format argon2id encoded hash string.
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", ssoerr.Internal("failed to generate salt", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks plain against an encoded hash in constant time.
//
// verify(nil, _) always fails with the same error a wrong-password
// verify would produce — the caller (the engine) must not distinguish
// "no hash set" from "wrong password" in its response or timing.
func Verify(encoded *string, plain string) bool {
	if encoded == nil || *encoded == "" {
		// Still do constant work so a missing hash doesn't short-circuit
		// measurably faster than a present-but-wrong one.
		dummy := "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
		_, _ = verifyArgon2id(dummy, plain)
		return false
	}
	ok, err := verifyArgon2id(*encoded, plain)
	if err != nil {
		return false
	}
	return ok
}

func verifyArgon2id(encoded, plain string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("invalid argon2id hash format")
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, fmt.Errorf("parsing hash params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}

	expectedKey, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decoding key: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, iterations, memory, threads, uint32(len(expectedKey)))
	return subtle.ConstantTimeCompare(key, expectedKey) == 1, nil
}
