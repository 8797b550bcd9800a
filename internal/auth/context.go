package auth

import "context"

type identityKey struct{}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Subject string
	Role    Role
}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{Subject: subject, Role: role})
}

// IdentityFromContext returns the caller, or false when the request was not authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}
