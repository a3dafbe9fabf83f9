package dto

import (
	"time"

	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/service"
)

// SignInResponse is returned after a successful magic-link redemption
type SignInResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
	NewUser   bool         `json:"new_user"`
}

// DeviceAuthorizationResponse starts the CLI handshake
type DeviceAuthorizationResponse struct {
	UserCode                string `json:"user_code"`
	DeviceCode              string `json:"device_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// DevicePollResponse reports the handshake status to the CLI
type DevicePollResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
}

// DeviceLookupResponse describes a pending authorization on the approval page
type DeviceLookupResponse struct {
	UserCode  string `json:"user_code"`
	ExpiresAt string `json:"expires_at"`
}

// UserResponse represents a user response
type UserResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	DisplayName     *string `json:"display_name"`
	IsEmailVerified bool    `json:"is_email_verified"`
	IsAdmin         bool    `json:"is_admin"`
	IsBlocked       bool    `json:"is_blocked"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	LastLoginAt     *string `json:"last_login_at"`
}

// SessionResponse describes one of the caller's sessions
type SessionResponse struct {
	ID         string  `json:"id"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt string  `json:"last_used_at"`
	ExpiresAt  string  `json:"expires_at"`
	UserAgent  *string `json:"user_agent"`
	IPAddress  *string `json:"ip_address"`
	Current    bool    `json:"current"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// NewUserResponse converts a domain user
func NewUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		IsEmailVerified: u.IsEmailVerified,
		IsAdmin:         u.IsAdmin,
		IsBlocked:       u.IsBlocked,
		CreatedAt:       formatTime(u.CreatedAt),
		UpdatedAt:       formatTime(u.UpdatedAt),
	}
	if u.LastLoginAt != nil {
		t := formatTime(*u.LastLoginAt)
		resp.LastLoginAt = &t
	}
	return resp
}

// NewSignInResponse converts a redemption result
func NewSignInResponse(r *service.SignInResult) SignInResponse {
	return SignInResponse{
		Token:     r.Session.Token,
		ExpiresAt: formatTime(r.Session.Session.ExpiresAt),
		User:      NewUserResponse(r.User),
		NewUser:   r.NewUser,
	}
}

// NewSessionResponse converts a domain session; current marks the caller's own
func NewSessionResponse(s *domain.Session, current bool) SessionResponse {
	return SessionResponse{
		ID:         s.ID,
		CreatedAt:  formatTime(s.CreatedAt),
		LastUsedAt: formatTime(s.LastUsedAt),
		ExpiresAt:  formatTime(s.ExpiresAt),
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
		Current:    current,
	}
}

// NewDeviceAuthorizationResponse converts an initiated handshake
func NewDeviceAuthorizationResponse(a *service.DeviceAuthorization) DeviceAuthorizationResponse {
	return DeviceAuthorizationResponse{
		UserCode:                a.UserCode,
		DeviceCode:              a.DeviceCode,
		VerificationURI:         a.VerificationURI,
		VerificationURIComplete: a.VerificationURIComplete,
		ExpiresIn:               a.ExpiresIn,
		Interval:                a.Interval,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
