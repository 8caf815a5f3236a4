package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	hashed, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hashed, "$argon2id$v=19$"))

	require.True(t, VerifyPassword("correct horse battery staple", hashed))
	require.False(t, VerifyPassword("wrong password", hashed))
}

func TestHashIsSalted(t *testing.T) {
	t.Parallel()

	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, VerifyPassword("same password", first))
	require.True(t, VerifyPassword("same password", second))
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	require.False(t, VerifyPassword("anything", ""))
	require.False(t, VerifyPassword("anything", "not-a-phc-string"))
	require.False(t, VerifyPassword("anything", "$argon2id$v=19$m=65536,t=1,p=4$bad"))
}
