package domain

import "time"

// MagicLinkToken is a one-time sign-in grant delivered by email.
type MagicLinkToken struct {
	ID        string     `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	TokenHash string     `json:"-" db:"token_hash"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"used_at" db:"used_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
