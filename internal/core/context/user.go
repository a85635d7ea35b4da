// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Roles known to the service. Supervisors approve transfers; admins
// open and close periods and manage master data.
const (
	RoleStaff      = "staff"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID      string
	Email       string
	Role        string
	LocationIDs []string // locations the user may post into (empty for admins)
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has a specific role. Admin satisfies every check.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return u.Role == role || u.Role == RoleAdmin
}

// HasLocationAccess checks if user may act on a location.
// Admins have access everywhere; other roles need an explicit grant.
func HasLocationAccess(ctx context.Context, locationID string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	for _, id := range u.LocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}
