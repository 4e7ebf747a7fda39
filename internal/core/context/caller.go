package context

import (
	"context"
	"slices"
)

// Caller is the authenticated party that triggered a change.
type Caller struct {
	Subject string
	Roles   []string
}

type callerContextKey struct{}

// WithCaller adds Caller to context.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// GetCaller returns Caller from context.
func GetCaller(ctx context.Context) *Caller {
	if v, ok := ctx.Value(callerContextKey{}).(*Caller); ok {
		return v
	}
	return nil
}

// GetSubject returns the caller subject or empty string.
func GetSubject(ctx context.Context) string {
	if c := GetCaller(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// HasRole checks if the caller has a specific role.
func HasRole(ctx context.Context, role string) bool {
	c := GetCaller(ctx)
	return c != nil && slices.Contains(c.Roles, role)
}
