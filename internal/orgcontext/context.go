package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// AuthContext is the caller identity resolved by the authentication layer.
type AuthContext struct {
	OrgID    snowflake.ID
	OrgName  string
	UserID   string
	Email    string
	Username string
	IsAdmin  bool
}

// OrgContextKey is the request context key for the active organization.
type OrgContextKey struct{}

// WithAuth stores the caller identity in the context.
func WithAuth(ctx context.Context, auth AuthContext) context.Context {
	auth.OrgName = strings.TrimSpace(auth.OrgName)
	return context.WithValue(ctx, OrgContextKey{}, auth)
}

// FromContext returns the caller identity, if set.
func FromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	auth, ok := ctx.Value(OrgContextKey{}).(AuthContext)
	return auth, ok
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	auth, ok := FromContext(ctx)
	if !ok || auth.OrgID == 0 {
		return 0, false
	}
	return auth.OrgID, true
}

// OrgNameFromContext returns the tenant collection prefix, if set.
func OrgNameFromContext(ctx context.Context) (string, bool) {
	auth, ok := FromContext(ctx)
	if !ok || auth.OrgName == "" {
		return "", false
	}
	return auth.OrgName, true
}

// Actor returns the user attribution for audit records.
func (a AuthContext) Actor() string {
	if id := strings.TrimSpace(a.UserID); id != "" {
		return id
	}
	if email := strings.TrimSpace(a.Email); email != "" {
		return email
	}
	return "system"
}

// DisplayName returns the best human-readable name of the caller.
func (a AuthContext) DisplayName() string {
	if name := strings.TrimSpace(a.Username); name != "" {
		return name
	}
	return strings.TrimSpace(a.Email)
}
