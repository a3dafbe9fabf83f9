package dto

// MagicLinkRequest asks for a sign-in link to be emailed
type MagicLinkRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyRequest redeems a magic-link token outside the browser redirect flow
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// DeviceTokenRequest is a CLI poll
type DeviceTokenRequest struct {
	DeviceCode string `json:"device_code" binding:"required"`
}

// UserCodeRequest names a device authorization by its user code
type UserCodeRequest struct {
	UserCode string `json:"user_code" binding:"required"`
}

// SetBlockedRequest changes a user's blocked flag
type SetBlockedRequest struct {
	Blocked *bool `json:"blocked" binding:"required"`
}
