package admission

import "context"

type identityKey struct{}

// WithIdentity attaches an authenticated principal name to ctx.
// Authentication middleware in front of the limiter calls this so the
// principal gets its own rate limit partition.
func WithIdentity(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, identityKey{}, name)
}

// IdentityFromContext returns the principal name, or "" if none.
func IdentityFromContext(ctx context.Context) string {
	name, _ := ctx.Value(identityKey{}).(string)
	return name
}
