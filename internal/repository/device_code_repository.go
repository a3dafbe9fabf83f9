package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/pkg/database"
)

const deviceCodeColumns = `id, user_code, device_code_hash, approved, denied, expires_at, user_id, pending_token, created_at, approved_at`

// deviceCodeRepository implements DeviceCodeRepository interface
type deviceCodeRepository struct {
	db *database.Postgres
}

// NewDeviceCodeRepository creates a new device authorization repository
func NewDeviceCodeRepository(db *database.Postgres) DeviceCodeRepository {
	return &deviceCodeRepository{db: db}
}

// Create stores a new pending device authorization
func (r *deviceCodeRepository) Create(ctx context.Context, code *domain.DeviceAuthCode) error {
	query := `
		INSERT INTO device_auth_codes (id, user_code, device_code_hash, approved, denied, expires_at, created_at)
		VALUES ($1, $2, $3, FALSE, FALSE, $4, $5)
	`

	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		code.ID,
		code.UserCode,
		code.DeviceCodeHash,
		code.ExpiresAt,
		code.CreatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if strings.Contains(pqErr.Constraint, "user_code") {
				return fmt.Errorf("user code collision: %w", ErrDuplicateUserCode)
			}
			return fmt.Errorf("device code with hash already exists: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create device code: %w", err)
	}

	return nil
}

// GetByDeviceCodeHash retrieves a device authorization by device code hash
func (r *deviceCodeRepository) GetByDeviceCodeHash(ctx context.Context, deviceCodeHash string) (*domain.DeviceAuthCode, error) {
	query := `SELECT ` + deviceCodeColumns + ` FROM device_auth_codes WHERE device_code_hash = $1`

	code, err := scanDeviceCode(r.db.DB.QueryRowContext(ctx, query, deviceCodeHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device code not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get device code: %w", err)
	}

	return code, nil
}

// GetPendingByUserCode retrieves a still-pending device authorization by user code
func (r *deviceCodeRepository) GetPendingByUserCode(ctx context.Context, userCode string, now time.Time) (*domain.DeviceAuthCode, error) {
	query := `
		SELECT ` + deviceCodeColumns + `
		FROM device_auth_codes
		WHERE user_code = $1 AND approved = FALSE AND denied = FALSE AND expires_at > $2
	`

	code, err := scanDeviceCode(r.db.DB.QueryRowContext(ctx, query, userCode, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pending device code not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get device code by user code: %w", err)
	}

	return code, nil
}

// Approve records the approval and the handoff token if the code is still pending
func (r *deviceCodeRepository) Approve(ctx context.Context, id, userID, pendingToken string, now time.Time) error {
	query := `
		UPDATE device_auth_codes
		SET approved = TRUE, user_id = $2, pending_token = $3, approved_at = $4
		WHERE id = $1 AND approved = FALSE AND denied = FALSE AND expires_at > $4
	`

	result, err := r.db.DB.ExecContext(ctx, query, id, userID, pendingToken, now)
	if err != nil {
		return fmt.Errorf("failed to approve device code: %w", err)
	}

	return expectOneRow(result, "pending device code")
}

// Deny flips the denied flag if the code is still pending
func (r *deviceCodeRepository) Deny(ctx context.Context, userCode string, now time.Time) error {
	query := `
		UPDATE device_auth_codes
		SET denied = TRUE
		WHERE user_code = $1 AND approved = FALSE AND denied = FALSE AND expires_at > $2
	`

	result, err := r.db.DB.ExecContext(ctx, query, userCode, now)
	if err != nil {
		return fmt.Errorf("failed to deny device code: %w", err)
	}

	return expectOneRow(result, "pending device code")
}

// TakeApproved deletes an approved record and returns it in one statement
func (r *deviceCodeRepository) TakeApproved(ctx context.Context, deviceCodeHash string) (*domain.DeviceAuthCode, error) {
	query := `
		DELETE FROM device_auth_codes
		WHERE device_code_hash = $1 AND approved = TRUE
		RETURNING ` + deviceCodeColumns

	code, err := scanDeviceCode(r.db.DB.QueryRowContext(ctx, query, deviceCodeHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("approved device code not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to take approved device code: %w", err)
	}

	return code, nil
}

// DeleteExpired deletes device authorizations past their deadline
func (r *deviceCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM device_auth_codes WHERE expires_at <= $1`

	result, err := r.db.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired device codes: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %w", what, ErrNotFound)
	}

	return nil
}

func scanDeviceCode(row rowScanner) (*domain.DeviceAuthCode, error) {
	code := &domain.DeviceAuthCode{}
	var userID, pendingToken sql.NullString
	var approvedAt sql.NullTime

	err := row.Scan(
		&code.ID,
		&code.UserCode,
		&code.DeviceCodeHash,
		&code.Approved,
		&code.Denied,
		&code.ExpiresAt,
		&userID,
		&pendingToken,
		&code.CreatedAt,
		&approvedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		code.UserID = &userID.String
	}
	if pendingToken.Valid {
		code.PendingToken = &pendingToken.String
	}
	if approvedAt.Valid {
		code.ApprovedAt = &approvedAt.Time
	}

	return code, nil
}
