package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/repository"
	"github.com/prperemyshlev/tasklane/internal/utils"
	"go.uber.org/zap"
)

// IssuedSession is a freshly created session together with its raw bearer
// token. The token is not retrievable again once this value is discarded.
type IssuedSession struct {
	Session *domain.Session
	Token   string
}

// sessionService implements SessionService interface
type sessionService struct {
	repo           repository.SessionRepository
	ttl            time.Duration
	renewThreshold time.Duration
	logger         *zap.Logger
	metrics        *authMetrics
	now            func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	repo repository.SessionRepository,
	ttl time.Duration,
	renewThreshold time.Duration,
	logger *zap.Logger,
	opts ...Option,
) SessionService {
	o := buildOptions(opts)
	return &sessionService{
		repo:           repo,
		ttl:            ttl,
		renewThreshold: renewThreshold,
		logger:         logger,
		metrics:        newAuthMetrics(),
		now:            o.now,
	}
}

// Create issues a new session for the user
func (s *sessionService) Create(ctx context.Context, userID string, meta domain.ClientMetadata) (*IssuedSession, error) {
	token := utils.GenerateSecret()
	now := s.now()

	session := &domain.Session{
		UserID:     userID,
		TokenHash:  utils.HashSecret(token),
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
		LastUsedAt: now,
		UserAgent:  optionalString(meta.UserAgent),
		IPAddress:  optionalString(meta.IPAddress),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.sessionCreated(ctx)

	return &IssuedSession{Session: session, Token: token}, nil
}

// Validate resolves a raw token to a live session and slides its expiry window
func (s *sessionService) Validate(ctx context.Context, rawToken string) (*domain.Session, error) {
	if !utils.ValidateSecretFormat(rawToken) {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	session, err := s.repo.GetActiveByTokenHash(ctx, utils.HashSecret(rawToken), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	// Renewal is best effort: losing this write must not fail the request.
	if session.ExpiresAt.Sub(now) < s.renewThreshold {
		expiresAt := now.Add(s.ttl)
		if err := s.repo.Renew(ctx, session.ID, expiresAt, now); err != nil {
			s.logger.Warn("Failed to renew session", zap.String("session_id", session.ID), zap.Error(err))
		} else {
			session.ExpiresAt = expiresAt
			session.LastUsedAt = now
		}
	} else {
		if err := s.repo.Touch(ctx, session.ID, now); err != nil {
			s.logger.Warn("Failed to touch session", zap.String("session_id", session.ID), zap.Error(err))
		} else {
			session.LastUsedAt = now
		}
	}

	return session, nil
}

// ListForUser returns the user's live sessions, newest first
func (s *sessionService) ListForUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	now := s.now()
	sessions, err := s.repo.List(ctx, repository.SessionFilter{UserID: &userID, ActiveAt: &now})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// RevokeForUser deletes a session only if it belongs to the user
func (s *sessionService) RevokeForUser(ctx context.Context, userID, sessionID string) error {
	n, err := s.repo.Delete(ctx, repository.SessionFilter{ID: &sessionID, UserID: &userID})
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteByID deletes a session by ID. Deleting a missing session is not an error.
func (s *sessionService) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.repo.Delete(ctx, repository.SessionFilter{ID: &id}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteBySecret deletes the session identified by a raw token
func (s *sessionService) DeleteBySecret(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	hash := utils.HashSecret(rawToken)
	if _, err := s.repo.Delete(ctx, repository.SessionFilter{TokenHash: &hash}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser deletes every session of a user
func (s *sessionService) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := s.repo.Delete(ctx, repository.SessionFilter{UserID: &userID}); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// SweepExpired removes sessions past their expiry
func (s *sessionService) SweepExpired(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.repo.Delete(ctx, repository.SessionFilter{ExpiredBefore: &now})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	s.metrics.sweptRows(ctx, "session", n)
	return n, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
