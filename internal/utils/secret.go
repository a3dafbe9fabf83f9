package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// secretBytes is the entropy of generated bearer secrets (256 bits)
	secretBytes = 32

	// UserCodeLength is the length of human-readable device user codes
	UserCodeLength = 8

	// userCodeAlphabet excludes visually confusable characters (0/O, 1/I/L)
	userCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// GenerateSecret returns a random 256-bit secret encoded as lowercase hex.
// It panics if the system entropy source fails.
func GenerateSecret() string {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// HashSecret hashes a secret using SHA256
func HashSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// GenerateUserCode returns a code a person can read on one screen and type on another
func GenerateUserCode() string {
	max := big.NewInt(int64(len(userCodeAlphabet)))
	var sb strings.Builder
	sb.Grow(UserCodeLength)
	for i := 0; i < UserCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("failed to read random bytes: %v", err))
		}
		sb.WriteByte(userCodeAlphabet[n.Int64()])
	}
	return sb.String()
}

// NormalizeUserCode uppercases a typed user code and drops separators
func NormalizeUserCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

// SecureCompare compares two secrets in constant time
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
