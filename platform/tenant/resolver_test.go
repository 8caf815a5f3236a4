package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// mapLookup serves Spaces from a fixed map and counts lookups.
type mapLookup struct {
	spaces map[string]Space
	calls  int
	err    error
}

func (m *mapLookup) SpaceForDomain(ctx context.Context, domain string) (Space, error) {
	m.calls++
	if m.err != nil {
		return Space{}, m.err
	}
	space, ok := m.spaces[domain]
	if !ok {
		return Space{}, ErrTenantNotFound
	}
	return space, nil
}

func newTestLookup() *mapLookup {
	return &mapLookup{spaces: map[string]Space{
		"stmarys.edu.gh": {SchoolID: uuid.New(), Slug: "st-marys", SchemaName: "dev__school_st_marys", RoleName: "r"},
		"demo":           {SchoolID: uuid.New(), Slug: "demo", SchemaName: "dev__school_demo", RoleName: "r"},
	}}
}

func TestResolverExactMatch(t *testing.T) {
	t.Parallel()

	r := NewResolver(newTestLookup(), ResolverConfig{PlatformSchema: "public"})

	space, err := r.Resolve(context.Background(), "stmarys.edu.gh")
	require.NoError(t, err)
	require.Equal(t, "st-marys", space.Slug)
	require.False(t, space.Public)
}

func TestResolverNormalizesHost(t *testing.T) {
	t.Parallel()

	r := NewResolver(newTestLookup(), ResolverConfig{PlatformSchema: "public"})

	// Port and case come straight from the Host header.
	space, err := r.Resolve(context.Background(), "StMarys.EDU.gh:8443")
	require.NoError(t, err)
	require.Equal(t, "st-marys", space.Slug)
}

func TestResolverLeadingLabelFallback(t *testing.T) {
	t.Parallel()

	lookup := newTestLookup()
	r := NewResolver(lookup, ResolverConfig{PlatformSchema: "public"})

	// No exact record for demo.example.org; the leading label matches the
	// school registered as just "demo".
	space, err := r.Resolve(context.Background(), "demo.example.org")
	require.NoError(t, err)
	require.Equal(t, "demo", space.Slug)
	require.Equal(t, 2, lookup.calls)
}

func TestResolverStrictMiss(t *testing.T) {
	t.Parallel()

	r := NewResolver(newTestLookup(), ResolverConfig{PlatformSchema: "public", Policy: PolicyStrict})

	_, err := r.Resolve(context.Background(), "unknown.example.org")
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestResolverPublicFallbackMiss(t *testing.T) {
	t.Parallel()

	r := NewResolver(newTestLookup(), ResolverConfig{PlatformSchema: "public", Policy: PolicyPublicFallback})

	space, err := r.Resolve(context.Background(), "unknown.example.org")
	require.NoError(t, err)
	require.True(t, space.Public)
	require.Equal(t, "public", space.SchemaName)
}

func TestResolverPropagatesLookupFailure(t *testing.T) {
	t.Parallel()

	lookup := &mapLookup{err: errors.New("db down")}
	r := NewResolver(lookup, ResolverConfig{PlatformSchema: "public", Policy: PolicyPublicFallback})

	// Infrastructure failures must not silently degrade to the public site.
	_, err := r.Resolve(context.Background(), "stmarys.edu.gh")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTenantNotFound)
}

func TestResolverCachesWithinTTL(t *testing.T) {
	t.Parallel()

	lookup := newTestLookup()
	r := NewResolver(lookup, ResolverConfig{PlatformSchema: "public", CacheTTL: time.Minute})

	for i := 0; i < 5; i++ {
		_, err := r.Resolve(context.Background(), "stmarys.edu.gh")
		require.NoError(t, err)
	}
	require.Equal(t, 1, lookup.calls)
}

func TestResolverInvalidateForcesLookup(t *testing.T) {
	t.Parallel()

	lookup := newTestLookup()
	r := NewResolver(lookup, ResolverConfig{PlatformSchema: "public", CacheTTL: time.Minute})

	_, err := r.Resolve(context.Background(), "stmarys.edu.gh")
	require.NoError(t, err)

	r.Invalidate("stmarys.edu.gh")

	_, err = r.Resolve(context.Background(), "stmarys.edu.gh")
	require.NoError(t, err)
	require.Equal(t, 2, lookup.calls)
}

func TestResolverResetDropsEverything(t *testing.T) {
	t.Parallel()

	lookup := newTestLookup()
	r := NewResolver(lookup, ResolverConfig{PlatformSchema: "public", CacheTTL: time.Minute})

	_, _ = r.Resolve(context.Background(), "stmarys.edu.gh")
	_, _ = r.Resolve(context.Background(), "demo.example.org")
	callsBefore := lookup.calls

	r.Reset()

	_, _ = r.Resolve(context.Background(), "stmarys.edu.gh")
	_, _ = r.Resolve(context.Background(), "demo.example.org")
	require.Greater(t, lookup.calls, callsBefore)
}

func TestResolverSeesNewBindingAfterReset(t *testing.T) {
	t.Parallel()

	lookup := newTestLookup()
	r := NewResolver(lookup, ResolverConfig{PlatformSchema: "public", Policy: PolicyPublicFallback, CacheTTL: time.Minute})

	// First resolution misses and the fallback gets cached.
	space, err := r.Resolve(context.Background(), "newschool.edu.gh")
	require.NoError(t, err)
	require.True(t, space.Public)

	// Binding the domain and resetting the cache changes the outcome.
	lookup.spaces["newschool.edu.gh"] = Space{Slug: "newschool", SchemaName: "dev__school_newschool", RoleName: "r"}
	r.Reset()

	space, err = r.Resolve(context.Background(), "newschool.edu.gh")
	require.NoError(t, err)
	require.Equal(t, "newschool", space.Slug)
}

func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	require.Equal(t, "stmarys.edu.gh", NormalizeHost("StMarys.edu.GH"))
	require.Equal(t, "stmarys.edu.gh", NormalizeHost("stmarys.edu.gh:3000"))
	require.Equal(t, "stmarys.edu.gh", NormalizeHost("stmarys.edu.gh."))
	require.Equal(t, "", NormalizeHost("  "))
}
