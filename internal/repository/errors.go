package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found or a conditional update matched no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateToken is returned when trying to create a token with an existing hash
	ErrDuplicateToken = errors.New("token with this hash already exists")

	// ErrDuplicateUserCode is returned when a device user code collides with a live one
	ErrDuplicateUserCode = errors.New("device user code already exists")

	// ErrEmptyFilter is returned when a bulk delete is requested without any predicate
	ErrEmptyFilter = errors.New("filter has no predicates")
)

const uniqueViolation = "23505"
