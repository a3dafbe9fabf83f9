package domain

import "time"

// Session represents a live authenticated credential. Only the hash of the
// bearer secret is stored.
type Session struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	TokenHash  string    `json:"-" db:"token_hash"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastUsedAt time.Time `json:"last_used_at" db:"last_used_at"`
	UserAgent  *string   `json:"user_agent" db:"user_agent"`
	IPAddress  *string   `json:"ip_address" db:"ip_address"`
}

// ClientMetadata describes the client a session is issued to.
type ClientMetadata struct {
	UserAgent string
	IPAddress string
}

// IsExpired reports whether the session is past its deadline at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
