package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidScopeName(t *testing.T) {
	for _, v := range []string{
		"a", "openid", "profile:read", "a_b-c.d:scope2", "User.Read", "UPPER",
		"https://api.example.com/read", "semicolon;ok", "!#[]~",
		strings.Repeat("a", MaxScopeLen),
	} {
		require.True(t, ValidScopeName(v), v)
	}
	for _, v := range []string{
		"", "bad space", `say"hi"`, `back\slash`, "tab\tin", "del\x7f", "ñandú",
		strings.Repeat("a", MaxScopeLen+1),
	} {
		require.False(t, ValidScopeName(v), v)
	}
}

func TestParseScope(t *testing.T) {
	got, err := ParseScope("  openid profile  openid email ")
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "profile", "email"}, got)

	got, err = ParseScope("")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = ParseScope("openid User.Read https://api.example.com/read")
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "User.Read", "https://api.example.com/read"}, got)

	got, err = ParseScope("openid Openid")
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "Openid"}, got)

	_, err = ParseScope(`openid "quoted"`)
	require.ErrorContains(t, err, `quoted`)
}
