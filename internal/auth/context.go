// Package auth carries the authenticated principal through request handlers.
package auth

import "context"

// Principal is the identity published by the auth middleware for downstream handlers
type Principal struct {
	UserID    string
	SessionID string // empty for the legacy shared-secret credential
	IsAdmin   bool
	Legacy    bool
}

type principalKey struct{}

// WithPrincipal returns a new context with the principal attached
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal, returning nil if the request is unauthenticated
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// UserID returns the authenticated user id or an empty string
func UserID(ctx context.Context) string {
	if p := FromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}
