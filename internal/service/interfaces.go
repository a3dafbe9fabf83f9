package service

import (
	"context"

	"github.com/prperemyshlev/tasklane/internal/domain"
)

// SessionService manages the sliding-window session lifecycle
type SessionService interface {
	Create(ctx context.Context, userID string, meta domain.ClientMetadata) (*IssuedSession, error)
	Validate(ctx context.Context, rawToken string) (*domain.Session, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Session, error)
	RevokeForUser(ctx context.Context, userID, sessionID string) error
	DeleteByID(ctx context.Context, id string) error
	DeleteBySecret(ctx context.Context, rawToken string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	SweepExpired(ctx context.Context) (int64, error)
}

// MagicLinkService issues and redeems single-use email sign-in links
type MagicLinkService interface {
	RequestSignIn(ctx context.Context, email string) error
	Redeem(ctx context.Context, rawToken string, meta domain.ClientMetadata) (*SignInResult, error)
	SweepExpired(ctx context.Context) (int64, error)
}

// DeviceAuthService runs the CLI device-authorization handshake
type DeviceAuthService interface {
	Initiate(ctx context.Context) (*DeviceAuthorization, error)
	Poll(ctx context.Context, deviceCode string) (*DevicePollResult, error)
	Lookup(ctx context.Context, userCode string) (*DeviceCodeInfo, error)
	Approve(ctx context.Context, userCode, userID string, meta domain.ClientMetadata) error
	Deny(ctx context.Context, userCode string) error
	SweepExpired(ctx context.Context) (int64, error)
}

// UserService exposes the account fields the auth core owns
type UserService interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	SetBlocked(ctx context.Context, userID string, blocked bool) error
}
