package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/repository"
	"go.uber.org/zap"
)

// userService implements UserService interface
type userService struct {
	users    repository.UserRepository
	sessions SessionService
	logger   *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository, sessions SessionService, logger *zap.Logger) UserService {
	return &userService{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// GetUser retrieves a user by ID
func (s *userService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetBlocked changes the blocked flag. Blocking signs the user out everywhere.
func (s *userService) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	if err := s.users.SetBlocked(ctx, userID, blocked); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if !blocked {
		return nil
	}

	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("User blocked, sessions revoked", zap.String("user_id", userID))

	return nil
}
