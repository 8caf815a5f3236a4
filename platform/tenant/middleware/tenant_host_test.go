package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sukuu-hq/sukuu/platform/tenant"
)

type stubResolver struct {
	spaces map[string]tenant.Space
	err    error
}

func (s *stubResolver) Resolve(ctx context.Context, host string) (tenant.Space, error) {
	if s.err != nil {
		return tenant.Space{}, s.err
	}
	space, ok := s.spaces[tenant.NormalizeHost(host)]
	if !ok {
		return tenant.Space{}, tenant.ErrTenantNotFound
	}
	return space, nil
}

func TestWithTenantHostBindsSpace(t *testing.T) {
	t.Parallel()

	resolver := &stubResolver{spaces: map[string]tenant.Space{
		"stmarys.edu.gh": {Slug: "st-marys", SchemaName: "dev__school_st_marys"},
	}}

	var seen tenant.Space
	handler := WithTenantHost(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		space, ok := tenant.FromContext(r.Context())
		require.True(t, ok)
		seen = space
	}))

	req := httptest.NewRequest(http.MethodGet, "http://stmarys.edu.gh:8080/api/v1/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "st-marys", seen.Slug)
}

func TestWithTenantHostUnknownHostIs404(t *testing.T) {
	t.Parallel()

	handler := WithTenantHost(&stubResolver{spaces: map[string]tenant.Space{}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run for an unresolved host")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "http://unknown.example.org/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithTenantHostResolverFailureIs503(t *testing.T) {
	t.Parallel()

	handler := WithTenantHost(&stubResolver{err: errors.New("db down")})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run when resolution fails")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "http://stmarys.edu.gh/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequirePlatformRejectsSchoolHost(t *testing.T) {
	t.Parallel()

	handler := RequirePlatform(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for a school partition")
	}))

	ctx := tenant.WithSpace(context.Background(), tenant.Space{Slug: "st-marys", SchemaName: "s"})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schools", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequirePlatformAllowsPublicSpace(t *testing.T) {
	t.Parallel()

	called := false
	handler := RequirePlatform(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	ctx := tenant.WithSpace(context.Background(), tenant.PublicSpace("public"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schools", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, called)
}
