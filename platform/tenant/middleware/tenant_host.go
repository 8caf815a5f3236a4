package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// HostResolver is the resolution capability the middleware depends on,
// implemented by *tenant.Resolver.
type HostResolver interface {
	Resolve(ctx context.Context, host string) (tenant.Space, error)
}

// WithTenantHost resolves the school from the request Host header and
// attaches the resulting tenant.Space to the request context. The binding
// lives on the per-request context, so it is torn down with the request on
// every exit path and is never visible to another request.
//
// Under PolicyStrict an unmatched hostname ends the request with 404; under
// PolicyPublicFallback the platform Space is bound instead.
func WithTenantHost(resolver HostResolver) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			space, err := resolver.Resolve(r.Context(), r.Host)
			if err != nil {
				if errors.Is(err, tenant.ErrTenantNotFound) {
					http.Error(w, "no such school", http.StatusNotFound)
					return
				}
				http.Error(w, "tenant resolution failed", http.StatusServiceUnavailable)
				return
			}

			ctx := tenant.WithSpace(r.Context(), space)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePlatform guards routes that operate on the platform partition only
// (school registry administration). It must run after WithTenantHost.
func RequirePlatform(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		space, ok := tenant.FromContext(r.Context())
		if !ok {
			http.Error(w, "no active tenant", http.StatusInternalServerError)
			return
		}
		if !space.Public {
			http.Error(w, "platform host required", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
