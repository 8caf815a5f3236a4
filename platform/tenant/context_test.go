package tenant

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWithSpaceRoundTrip(t *testing.T) {
	t.Parallel()

	space := Space{
		SchoolID:   uuid.New(),
		Slug:       "st-marys",
		SchemaName: "dev__school_st_marys",
		RoleName:   "dev__school_st_marys_role",
	}

	ctx := WithSpace(context.Background(), space)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, space, got)

	got, err := MustFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, space, got)
}

func TestMustFromContextFailsClosed(t *testing.T) {
	t.Parallel()

	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, err := MustFromContext(context.Background())
	require.ErrorIs(t, err, ErrNoActiveTenant)
}

func TestNestedOverrideRestoresOuterBinding(t *testing.T) {
	t.Parallel()

	outer := Space{Slug: "outer", SchemaName: "dev__school_outer", RoleName: "r1"}
	inner := Space{Slug: "inner", SchemaName: "dev__school_inner", RoleName: "r2"}

	outerCtx := WithSpace(context.Background(), outer)

	func() {
		innerCtx := WithSpace(outerCtx, inner)
		got, ok := FromContext(innerCtx)
		require.True(t, ok)
		require.Equal(t, "inner", got.Slug)
	}()

	// The outer context is untouched by the nested scope.
	got, ok := FromContext(outerCtx)
	require.True(t, ok)
	require.Equal(t, "outer", got.Slug)
}

func TestOverrideSurvivesPanicInInnerScope(t *testing.T) {
	t.Parallel()

	outer := Space{Slug: "outer", SchemaName: "s1"}
	outerCtx := WithSpace(context.Background(), outer)

	func() {
		defer func() { _ = recover() }()
		innerCtx := WithSpace(outerCtx, Space{Slug: "inner", SchemaName: "s2"})
		_ = innerCtx
		panic("boom")
	}()

	got, ok := FromContext(outerCtx)
	require.True(t, ok)
	require.Equal(t, "outer", got.Slug)
}

func TestConcurrentRequestsSeeTheirOwnBinding(t *testing.T) {
	t.Parallel()

	base := context.Background()
	slugs := []string{"alpha", "beta", "gamma", "delta"}

	var wg sync.WaitGroup
	for _, slug := range slugs {
		wg.Add(1)
		go func(slug string) {
			defer wg.Done()
			ctx := WithSpace(base, Space{Slug: slug, SchemaName: "dev__school_" + slug})
			for i := 0; i < 100; i++ {
				got, ok := FromContext(ctx)
				if !ok || got.Slug != slug {
					t.Errorf("binding leaked: want %s, got %+v", slug, got)
					return
				}
			}
		}(slug)
	}
	wg.Wait()

	// The shared base context never gained a binding.
	_, ok := FromContext(base)
	require.False(t, ok)
}

func TestPublicSpace(t *testing.T) {
	t.Parallel()

	space := PublicSpace("public")
	require.True(t, space.Public)
	require.Equal(t, "public", space.SchemaName)
	require.Equal(t, "public", space.Slug)
	require.Equal(t, uuid.Nil, space.SchoolID)
}
