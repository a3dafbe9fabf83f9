package domain

import "time"

// DeviceAuthStatus is the state of a device authorization handshake
type DeviceAuthStatus string

const (
	DeviceAuthPending  DeviceAuthStatus = "pending"
	DeviceAuthApproved DeviceAuthStatus = "approved"
	DeviceAuthDenied   DeviceAuthStatus = "denied"
	DeviceAuthExpired  DeviceAuthStatus = "expired"
)

// DeviceAuthCode pairs a human-readable user code with the hash of the device
// code held by the CLI. PendingToken carries the raw session token between
// approval and the first successful poll; it is never a hash.
type DeviceAuthCode struct {
	ID             string     `json:"id" db:"id"`
	UserCode       string     `json:"user_code" db:"user_code"`
	DeviceCodeHash string     `json:"-" db:"device_code_hash"`
	Approved       bool       `json:"approved" db:"approved"`
	Denied         bool       `json:"denied" db:"denied"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	UserID         *string    `json:"user_id" db:"user_id"`
	PendingToken   *string    `json:"-" db:"pending_token"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ApprovedAt     *time.Time `json:"approved_at" db:"approved_at"`
}

// Status derives the handshake state from the approved/denied flags and the
// deadline. Approval and denial are terminal and take precedence over expiry.
func (d *DeviceAuthCode) Status(now time.Time) DeviceAuthStatus {
	switch {
	case d.Denied:
		return DeviceAuthDenied
	case d.Approved:
		return DeviceAuthApproved
	case !now.Before(d.ExpiresAt):
		return DeviceAuthExpired
	default:
		return DeviceAuthPending
	}
}
