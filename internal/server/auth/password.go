// Package auth implements the credential and session authority: scrypt
// password hashing with constant-time verification, and issuing/resolving
// opaque server-side session tokens.
package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/propertyhub/docgate/internal/common"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. Changing them invalidates no stored hash: the salt and
// derived key are re-checked with the same parameters the hash was created
// with, which are fixed for the lifetime of the scheme.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16

	// hashDelimiter separates hex(salt) from hex(key) in the stored form.
	hashDelimiter = ":"
)

// HashPassword derives a memory-hard hash of plaintext with a fresh random
// salt and encodes both into a single stored string "hex(salt):hex(key)".
func HashPassword(plaintext string) (string, error) {
	salt := common.GenerateRandByteArray(saltLen)

	key, err := scrypt.Key([]byte(plaintext), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(salt) + hashDelimiter + hex.EncodeToString(key), nil
}

// VerifyPassword re-derives the hash of plaintext using the salt embedded in
// stored and compares it with a constant-time equality check. It fails
// closed: any malformed stored value yields false, never an error or panic.
func VerifyPassword(plaintext, stored string) bool {
	salt, want, ok := decodeStoredHash(stored)
	if !ok {
		return false
	}

	got, err := scrypt.Key([]byte(plaintext), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeStoredHash(stored string) (salt, key []byte, ok bool) {
	parts := strings.SplitN(stored, hashDelimiter, 2)
	if len(parts) != 2 {
		return nil, nil, false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return nil, nil, false
	}
	key, err = hex.DecodeString(parts[1])
	if err != nil || len(key) != scryptKeyLen {
		return nil, nil, false
	}
	return salt, key, true
}
