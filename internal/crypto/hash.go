// Package crypto provides scrypt hashing for the admin reset PIN.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// N=16384 (2^14), r=8, p=1 are recommended for interactive logins.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// HashWithScrypt hashes an input string using scrypt with the given salt.
// Returns hex-encoded hash.
func HashWithScrypt(input string, salt []byte) (string, error) {
	dk, err := scrypt.Key([]byte(input), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return hex.EncodeToString(dk), nil
}

// PINVerifier checks a supplied PIN against the configured one without
// keeping the plain PIN in memory.
type PINVerifier struct {
	salt []byte
	hash string
}

// NewPINVerifier hashes pin under a random per-process salt. An empty pin
// yields a verifier that rejects everything.
func NewPINVerifier(pin string) (*PINVerifier, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return &PINVerifier{}, nil
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	hash, err := HashWithScrypt(pin, salt)
	if err != nil {
		return nil, err
	}
	return &PINVerifier{salt: salt, hash: hash}, nil
}

// Enabled reports whether a PIN was configured.
func (v *PINVerifier) Enabled() bool {
	return v.hash != ""
}

// Verify reports whether supplied matches the configured PIN.
func (v *PINVerifier) Verify(supplied string) bool {
	if !v.Enabled() {
		return false
	}
	hash, err := HashWithScrypt(strings.TrimSpace(supplied), v.salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(v.hash)) == 1
}
