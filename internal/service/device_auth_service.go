package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/repository"
	"github.com/prperemyshlev/tasklane/internal/utils"
	"go.uber.org/zap"
)

// maxUserCodeAttempts bounds retries on user-code collisions
const maxUserCodeAttempts = 3

// DeviceAuthorization is returned to a CLI that starts the handshake
type DeviceAuthorization struct {
	UserCode                string
	DeviceCode              string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int
	Interval                int
}

// DevicePollResult is the outcome of one poll. Token is set only once, on
// the poll that claims an approved authorization.
type DevicePollResult struct {
	Status domain.DeviceAuthStatus
	Token  string
}

// DeviceCodeInfo describes a pending authorization to the approving user
type DeviceCodeInfo struct {
	UserCode  string
	ExpiresAt time.Time
}

// deviceAuthService implements DeviceAuthService interface
type deviceAuthService struct {
	codes           repository.DeviceCodeRepository
	sessions        SessionService
	verificationURL string
	ttl             time.Duration
	pollInterval    time.Duration
	logger          *zap.Logger
	metrics         *authMetrics
	now             func() time.Time
}

// NewDeviceAuthService creates a new device authorization service
func NewDeviceAuthService(
	codes repository.DeviceCodeRepository,
	sessions SessionService,
	verificationURL string,
	ttl time.Duration,
	pollInterval time.Duration,
	logger *zap.Logger,
	opts ...Option,
) DeviceAuthService {
	o := buildOptions(opts)
	return &deviceAuthService{
		codes:           codes,
		sessions:        sessions,
		verificationURL: verificationURL,
		ttl:             ttl,
		pollInterval:    pollInterval,
		logger:          logger,
		metrics:         newAuthMetrics(),
		now:             o.now,
	}
}

// Initiate creates a pending authorization with fresh device and user codes
func (s *deviceAuthService) Initiate(ctx context.Context) (*DeviceAuthorization, error) {
	var lastErr error

	for attempt := 0; attempt < maxUserCodeAttempts; attempt++ {
		deviceCode := utils.GenerateSecret()
		now := s.now()

		code := &domain.DeviceAuthCode{
			UserCode:       utils.GenerateUserCode(),
			DeviceCodeHash: utils.HashSecret(deviceCode),
			ExpiresAt:      now.Add(s.ttl),
			CreatedAt:      now,
		}

		err := s.codes.Create(ctx, code)
		if err == nil {
			s.metrics.deviceEvent(ctx, "initiated")
			return &DeviceAuthorization{
				UserCode:                code.UserCode,
				DeviceCode:              deviceCode,
				VerificationURI:         s.verificationURL,
				VerificationURIComplete: s.verificationURL + "?code=" + url.QueryEscape(code.UserCode),
				ExpiresIn:               int(s.ttl.Seconds()),
				Interval:                int(s.pollInterval.Seconds()),
			}, nil
		}

		if !errors.Is(err, repository.ErrDuplicateUserCode) {
			return nil, fmt.Errorf("failed to create device code: %w", err)
		}

		s.logger.Debug("User code collision, regenerating", zap.Int("attempt", attempt+1))
		lastErr = err
	}

	return nil, fmt.Errorf("failed to allocate user code: %w", lastErr)
}

// Poll reports the handshake status. An approved authorization hands out its
// token exactly once and is deleted in the same step.
func (s *deviceAuthService) Poll(ctx context.Context, deviceCode string) (*DevicePollResult, error) {
	if !utils.ValidateSecretFormat(deviceCode) {
		return &DevicePollResult{Status: domain.DeviceAuthExpired}, nil
	}

	hash := utils.HashSecret(deviceCode)
	code, err := s.codes.GetByDeviceCodeHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &DevicePollResult{Status: domain.DeviceAuthExpired}, nil
		}
		return nil, fmt.Errorf("failed to poll device code: %w", err)
	}

	status := code.Status(s.now())
	if status != domain.DeviceAuthApproved {
		return &DevicePollResult{Status: status}, nil
	}

	taken, err := s.codes.TakeApproved(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// A concurrent poll claimed it first
			return &DevicePollResult{Status: domain.DeviceAuthExpired}, nil
		}
		return nil, fmt.Errorf("failed to claim device code: %w", err)
	}

	if taken.PendingToken == nil {
		return nil, fmt.Errorf("approved device code %s has no pending token", taken.ID)
	}

	s.metrics.deviceEvent(ctx, "claimed")

	return &DevicePollResult{Status: domain.DeviceAuthApproved, Token: *taken.PendingToken}, nil
}

// Lookup returns a pending authorization so the user can confirm it
func (s *deviceAuthService) Lookup(ctx context.Context, userCode string) (*DeviceCodeInfo, error) {
	code, err := s.pending(ctx, userCode)
	if err != nil {
		return nil, err
	}
	return &DeviceCodeInfo{UserCode: code.UserCode, ExpiresAt: code.ExpiresAt}, nil
}

// Approve binds a pending authorization to the user and mints the session the
// CLI will receive on its next poll
func (s *deviceAuthService) Approve(ctx context.Context, userCode, userID string, meta domain.ClientMetadata) error {
	code, err := s.pending(ctx, userCode)
	if err != nil {
		return err
	}

	issued, err := s.sessions.Create(ctx, userID, meta)
	if err != nil {
		return err
	}

	if err := s.codes.Approve(ctx, code.ID, userID, issued.Token, s.now()); err != nil {
		// Lost a race with another approve, a deny or the deadline
		if delErr := s.sessions.DeleteByID(ctx, issued.Session.ID); delErr != nil {
			s.logger.Error("Failed to delete orphaned device session",
				zap.String("session_id", issued.Session.ID),
				zap.Error(delErr),
			)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDeviceCodeNotFound
		}
		return fmt.Errorf("failed to approve device code: %w", err)
	}

	s.metrics.deviceEvent(ctx, "approved")
	s.logger.Info("Device authorization approved",
		zap.String("user_id", userID),
		zap.String("user_code", code.UserCode),
	)

	return nil
}

// Deny rejects a pending authorization
func (s *deviceAuthService) Deny(ctx context.Context, userCode string) error {
	normalized := utils.NormalizeUserCode(userCode)
	if !utils.ValidateUserCode(normalized) {
		return ErrDeviceCodeNotFound
	}

	if err := s.codes.Deny(ctx, normalized, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDeviceCodeNotFound
		}
		return fmt.Errorf("failed to deny device code: %w", err)
	}

	s.metrics.deviceEvent(ctx, "denied")

	return nil
}

// SweepExpired removes authorizations past their deadline
func (s *deviceAuthService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.codes.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep device codes: %w", err)
	}
	s.metrics.sweptRows(ctx, "device_code", n)
	return n, nil
}

func (s *deviceAuthService) pending(ctx context.Context, userCode string) (*domain.DeviceAuthCode, error) {
	normalized := utils.NormalizeUserCode(userCode)
	if !utils.ValidateUserCode(normalized) {
		return nil, ErrDeviceCodeNotFound
	}

	code, err := s.codes.GetPendingByUserCode(ctx, normalized, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceCodeNotFound
		}
		return nil, fmt.Errorf("failed to get device code: %w", err)
	}

	return code, nil
}
