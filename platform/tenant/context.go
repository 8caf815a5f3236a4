package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Space captures the resolved partition routing metadata for one request.
// It is attached to the context by middleware once the school has been
// resolved from the request host, and read back by the data-access layer.
// A Space is a value; deriving a new context with WithSpace never mutates
// the binding seen by the parent scope.
type Space struct {
	SchoolID    uuid.UUID
	Slug        string
	SchemaName  string
	RoleName    string
	MediaPrefix string
	// Public marks the platform partition (school metadata, platform admins).
	Public bool
}

// ErrNoActiveTenant is returned by data access invoked without a bound Space.
var ErrNoActiveTenant = errors.New("no active tenant bound to context")

type ctxKey struct{}

// PublicSpace returns the Space for the platform partition. It is the only
// way to construct a public binding, so exactly one such partition exists.
func PublicSpace(platformSchema string) Space {
	return Space{SchemaName: platformSchema, Slug: "public", Public: true}
}

// WithSpace returns a derived context carrying the tenant Space. Nested
// overrides (a platform job iterating schools) derive again; the previous
// binding is restored to callers when the inner scope returns, panics or is
// cancelled, because the outer context is untouched.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, ctxKey{}, space)
}

// FromContext extracts the tenant Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	space, ok := ctx.Value(ctxKey{}).(Space)
	return space, ok
}

// MustFromContext extracts the Space or fails closed with ErrNoActiveTenant.
func MustFromContext(ctx context.Context) (Space, error) {
	space, ok := FromContext(ctx)
	if !ok {
		return Space{}, ErrNoActiveTenant
	}
	return space, nil
}
