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

const sessionColumns = `id, user_id, token_hash, expires_at, created_at, last_used_at, user_agent, ip_address`

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	db *database.Postgres
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.Postgres) SessionRepository {
	return &sessionRepository{db: db}
}

// Create creates a new session in the database
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at, last_used_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastUsedAt.IsZero() {
		session.LastUsedAt = session.CreatedAt
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
		session.LastUsedAt,
		session.UserAgent,
		session.IPAddress,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("session with hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetActiveByTokenHash retrieves a non-expired session by its token hash
func (r *sessionRepository) GetActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
	`

	session, err := scanSession(r.db.DB.QueryRowContext(ctx, query, tokenHash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session with hash not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by hash: %w", err)
	}

	return session, nil
}

// Touch updates the last-used timestamp
func (r *sessionRepository) Touch(ctx context.Context, id string, lastUsedAt time.Time) error {
	query := `UPDATE sessions SET last_used_at = $2 WHERE id = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, id, lastUsedAt); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

// Renew extends the expiry and updates the last-used timestamp
func (r *sessionRepository) Renew(ctx context.Context, id string, expiresAt, lastUsedAt time.Time) error {
	query := `UPDATE sessions SET expires_at = $2, last_used_at = $3 WHERE id = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, id, expiresAt, lastUsedAt); err != nil {
		return fmt.Errorf("failed to renew session: %w", err)
	}

	return nil
}

// List retrieves sessions matching the filter, newest first
func (r *sessionRepository) List(ctx context.Context, filter SessionFilter) ([]*domain.Session, error) {
	where := filter.where()
	query := `SELECT ` + sessionColumns + ` FROM sessions` + where.SQL() + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.DB.QueryContext(ctx, query, where.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// Delete deletes all sessions matching the filter
func (r *sessionRepository) Delete(ctx context.Context, filter SessionFilter) (int64, error) {
	if filter.IsEmpty() {
		return 0, ErrEmptyFilter
	}

	where := filter.where()
	query := `DELETE FROM sessions` + where.SQL()

	result, err := r.db.DB.ExecContext(ctx, query, where.Args()...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	session := &domain.Session{}
	var userAgent, ipAddress sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.LastUsedAt,
		&userAgent,
		&ipAddress,
	)
	if err != nil {
		return nil, err
	}

	if userAgent.Valid {
		session.UserAgent = &userAgent.String
	}
	if ipAddress.Valid {
		session.IPAddress = &ipAddress.String
	}

	return session, nil
}
