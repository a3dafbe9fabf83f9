package domain

import "time"

// User represents an account in the system. Accounts are created implicitly on
// the first successful magic-link redemption for an unknown email.
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	DisplayName     *string    `json:"display_name" db:"display_name"`
	IsEmailVerified bool       `json:"is_email_verified" db:"is_email_verified"`
	IsAdmin         bool       `json:"is_admin" db:"is_admin"`
	IsBlocked       bool       `json:"is_blocked" db:"is_blocked"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt     *time.Time `json:"last_login_at" db:"last_login_at"`
}
