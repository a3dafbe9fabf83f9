package utils

import (
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	hexTokenRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSecretFormat reports whether s looks like a secret produced by GenerateSecret
func ValidateSecretFormat(s string) bool {
	return hexTokenRegex.MatchString(s)
}

// ValidateUserCode reports whether a normalized user code has the expected shape
func ValidateUserCode(code string) bool {
	if len(code) != UserCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(userCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
