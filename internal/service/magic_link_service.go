package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/email"
	"github.com/prperemyshlev/tasklane/internal/repository"
	"github.com/prperemyshlev/tasklane/internal/utils"
	"go.uber.org/zap"
)

// VerifyPath is the redemption endpoint embedded in emailed links
const VerifyPath = "/api/v1/auth/verify"

// SignInResult is the outcome of a successful magic-link redemption
type SignInResult struct {
	User    *domain.User
	Session *IssuedSession
	NewUser bool
}

// magicLinkService implements MagicLinkService interface
type magicLinkService struct {
	tokens   repository.MagicLinkRepository
	users    repository.UserRepository
	sessions SessionService
	mailer   email.Sender
	baseURL  string
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *authMetrics
	now      func() time.Time
}

// NewMagicLinkService creates a new magic-link service
func NewMagicLinkService(
	tokens repository.MagicLinkRepository,
	users repository.UserRepository,
	sessions SessionService,
	mailer email.Sender,
	baseURL string,
	ttl time.Duration,
	logger *zap.Logger,
	opts ...Option,
) MagicLinkService {
	o := buildOptions(opts)
	return &magicLinkService{
		tokens:   tokens,
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		baseURL:  baseURL,
		ttl:      ttl,
		logger:   logger,
		metrics:  newAuthMetrics(),
		now:      o.now,
	}
}

// RequestSignIn stores a new token for the email and mails the link. The
// result never depends on whether an account exists for the address.
func (s *magicLinkService) RequestSignIn(ctx context.Context, rawEmail string) error {
	addr := utils.SanitizeEmail(rawEmail)
	if !utils.ValidateEmail(addr) {
		return ErrInvalidEmail
	}

	s.metrics.signInRequested(ctx)

	rawToken := utils.GenerateSecret()
	now := s.now()

	token := &domain.MagicLinkToken{
		Email:     addr,
		TokenHash: utils.HashSecret(rawToken),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to store magic link: %w", err)
	}

	link := s.signInLink(rawToken)
	if err := s.send(ctx, email.SignInMessage(addr, link, s.ttl)); err != nil {
		// Operator fallback: the link is only ever logged when mail delivery fails.
		s.logger.Warn("Magic link email not delivered, link follows for manual delivery",
			zap.String("email", addr),
			zap.String("link", link),
			zap.Error(err),
		)
	}

	return nil
}

// Redeem consumes a token and signs the owner in, registering the account on first use
func (s *magicLinkService) Redeem(ctx context.Context, rawToken string, meta domain.ClientMetadata) (*SignInResult, error) {
	if !utils.ValidateSecretFormat(rawToken) {
		s.metrics.redemption(ctx, "invalid")
		return nil, ErrInvalidToken
	}

	addr, err := s.tokens.Consume(ctx, utils.HashSecret(rawToken), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.redemption(ctx, "invalid")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to consume magic link: %w", err)
	}

	user, created, err := s.findOrCreateUser(ctx, addr)
	if err != nil {
		return nil, err
	}

	if user.IsBlocked {
		s.metrics.redemption(ctx, "blocked")
		return nil, ErrAccountBlocked
	}

	if !user.IsEmailVerified {
		if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to mark email verified: %w", err)
		}
		user.IsEmailVerified = true
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("Failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	issued, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	s.metrics.redemption(ctx, "success")

	return &SignInResult{User: user, Session: issued, NewUser: created}, nil
}

// SweepExpired removes expired and consumed tokens
func (s *magicLinkService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep magic links: %w", err)
	}
	s.metrics.sweptRows(ctx, "magic_link", n)
	return n, nil
}

func (s *magicLinkService) findOrCreateUser(ctx context.Context, addr string) (*domain.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, addr)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	user = &domain.User{
		Email:           addr,
		IsEmailVerified: true,
	}
	err = s.users.Create(ctx, user)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	// Another redemption for the same address registered it first
	user, err = s.users.GetByEmail(ctx, addr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}
	return user, false, nil
}

func (s *magicLinkService) send(ctx context.Context, msg email.Message) error {
	if s.mailer == nil {
		return email.ErrNotConfigured
	}
	return s.mailer.Send(ctx, msg)
}

func (s *magicLinkService) signInLink(rawToken string) string {
	return s.baseURL + VerifyPath + "?token=" + url.QueryEscape(rawToken)
}
