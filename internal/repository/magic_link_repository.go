package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/pkg/database"
)

// magicLinkRepository implements MagicLinkRepository interface
type magicLinkRepository struct {
	db *database.Postgres
}

// NewMagicLinkRepository creates a new magic-link token repository
func NewMagicLinkRepository(db *database.Postgres) MagicLinkRepository {
	return &magicLinkRepository{db: db}
}

// Create stores a new magic-link token
func (r *magicLinkRepository) Create(ctx context.Context, token *domain.MagicLinkToken) error {
	query := `
		INSERT INTO magic_link_tokens (id, email, token_hash, used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		token.ID,
		token.Email,
		token.TokenHash,
		token.Used,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("magic link with hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create magic link: %w", err)
	}

	return nil
}

// Consume marks the token used and returns its email in one statement
func (r *magicLinkRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	query := `
		UPDATE magic_link_tokens
		SET used = TRUE, used_at = $2
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
		RETURNING email
	`

	var email string
	err := r.db.DB.QueryRowContext(ctx, query, tokenHash, now).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("redeemable magic link not found: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to consume magic link: %w", err)
	}

	return email, nil
}

// DeleteExpired deletes expired and already used tokens
func (r *magicLinkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM magic_link_tokens WHERE expires_at <= $1 OR used = TRUE`

	result, err := r.db.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired magic links: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
