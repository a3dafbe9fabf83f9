package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/tasklane/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	SetBlocked(ctx context.Context, userID string, blocked bool) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// SessionRepository defines methods for session operations
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	// GetActiveByTokenHash returns the session only if it has not expired at now
	GetActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*domain.Session, error)
	Touch(ctx context.Context, id string, lastUsedAt time.Time) error
	Renew(ctx context.Context, id string, expiresAt, lastUsedAt time.Time) error
	List(ctx context.Context, filter SessionFilter) ([]*domain.Session, error)
	// Delete removes every session matching the filter in a single statement
	Delete(ctx context.Context, filter SessionFilter) (int64, error)
}

// MagicLinkRepository defines methods for magic-link token operations
type MagicLinkRepository interface {
	Create(ctx context.Context, token *domain.MagicLinkToken) error
	// Consume atomically flips used to true for an unused, unexpired token and
	// returns its email. ErrNotFound covers unknown, used and expired tokens.
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// DeviceCodeRepository defines methods for device authorization operations
type DeviceCodeRepository interface {
	Create(ctx context.Context, code *domain.DeviceAuthCode) error
	GetByDeviceCodeHash(ctx context.Context, deviceCodeHash string) (*domain.DeviceAuthCode, error)
	// GetPendingByUserCode returns the record only while it is neither approved,
	// denied nor expired at now
	GetPendingByUserCode(ctx context.Context, userCode string, now time.Time) (*domain.DeviceAuthCode, error)
	// Approve flips approved, records the owner and stores the handoff token,
	// only if the record is still pending at now
	Approve(ctx context.Context, id, userID, pendingToken string, now time.Time) error
	// Deny flips denied only if the record is still pending at now
	Deny(ctx context.Context, userCode string, now time.Time) error
	// TakeApproved deletes an approved record and returns it, handoff token included.
	// Only one caller can ever observe a given record.
	TakeApproved(ctx context.Context, deviceCodeHash string) (*domain.DeviceAuthCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
