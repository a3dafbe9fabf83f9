package repository

import (
	"fmt"
	"strings"
	"time"
)

// SessionFilter selects sessions by explicit optional predicates. Nil fields
// are ignored; set fields are ANDed together.
type SessionFilter struct {
	ID            *string
	UserID        *string
	TokenHash     *string
	ActiveAt      *time.Time // expires_at > ActiveAt
	ExpiredBefore *time.Time // expires_at <= ExpiredBefore
	Limit         int
}

// IsEmpty reports whether the filter has no predicates
func (f SessionFilter) IsEmpty() bool {
	return f.ID == nil && f.UserID == nil && f.TokenHash == nil && f.ActiveAt == nil && f.ExpiredBefore == nil
}

// whereBuilder accumulates parameterized predicates with Postgres placeholders
type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) add(column, op string, arg any) {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, fmt.Sprintf("%s %s $%d", column, op, len(b.args)))
}

// SQL renders the WHERE clause, or an empty string when there are no predicates
func (b *whereBuilder) SQL() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *whereBuilder) Args() []any {
	return b.args
}

func (f SessionFilter) where() *whereBuilder {
	b := &whereBuilder{}
	if f.ID != nil {
		b.add("id", "=", *f.ID)
	}
	if f.UserID != nil {
		b.add("user_id", "=", *f.UserID)
	}
	if f.TokenHash != nil {
		b.add("token_hash", "=", *f.TokenHash)
	}
	if f.ActiveAt != nil {
		b.add("expires_at", ">", *f.ActiveAt)
	}
	if f.ExpiredBefore != nil {
		b.add("expires_at", "<=", *f.ExpiredBefore)
	}
	return b
}

// Matches evaluates the filter in memory, mirroring the SQL predicates
func (f SessionFilter) Matches(id, userID, tokenHash string, expiresAt time.Time) bool {
	if f.ID != nil && *f.ID != id {
		return false
	}
	if f.UserID != nil && *f.UserID != userID {
		return false
	}
	if f.TokenHash != nil && *f.TokenHash != tokenHash {
		return false
	}
	if f.ActiveAt != nil && !expiresAt.After(*f.ActiveAt) {
		return false
	}
	if f.ExpiredBefore != nil && expiresAt.After(*f.ExpiredBefore) {
		return false
	}
	return true
}
