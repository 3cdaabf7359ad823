package http

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/auth/login", "/auth/login"},
		{"/auth/interaction/2NjEbBjQ1hDcYNPdM4T8mR0B7pZ", "/auth/interaction/:param"},
		{"/auth/nonce/GAAZI4TCR3TY5OJHCTJC2A4QSY6CJWJH5IAJTGKIN2ER7LBNVKOCCWN7", "/auth/nonce/:param"},
		{"/x/123e4567-e89b-12d3-a456-426614174000", "/x/:param"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, normalizePath(tc.in), tc.in)
	}
}
