package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/rate"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, seen, 27)
	require.Equal(t, seen, w.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Equal(t, "abc", seen)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), WithRecover())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestSecurityHeaders(t *testing.T) {
	h := Chain(okHandler, WithSecurityHeaders(), WithNoStore())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.Empty(t, w.Header().Get("Strict-Transport-Security"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestWithTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	seen := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	start := time.Now()
	Chain(seen, WithTimeout(5*time.Second)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	require.WithinDuration(t, start.Add(5*time.Second), deadline, time.Second)

	Chain(seen, WithTimeout(0)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, ok)
}

type stubLimiter struct {
	res rate.Result
	err error
}

func (s stubLimiter) Allow(context.Context, string) (rate.Result, error) { return s.res, s.err }

func TestWithRateLimit(t *testing.T) {
	cases := []struct {
		name    string
		limiter rate.Limiter
		status  int
	}{
		{"disabled", nil, http.StatusNoContent},
		{"allowed", stubLimiter{res: rate.Result{Allowed: true, Remaining: 3, WindowTTL: time.Minute}}, http.StatusNoContent},
		{"denied", stubLimiter{res: rate.Result{RetryAfter: 30 * time.Second, WindowTTL: 30 * time.Second}}, http.StatusTooManyRequests},
		{"backend error fails open", stubLimiter{err: errors.New("redis down")}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Chain(okHandler, WithRateLimit(RateLimitConfig{Limiter: tc.limiter}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusTooManyRequests {
				require.Equal(t, "30", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", ClientIP(r))
}

func newIssuer(t *testing.T) *jwtx.Issuer {
	t.Helper()
	k, err := jwtx.GenerateSigningKey()
	require.NoError(t, err)
	return jwtx.NewIssuer("https://auth.test", jwtx.NewKeyring(k))
}

func TestRequireAuth(t *testing.T) {
	iss := newIssuer(t)
	var sub string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}), RequireAuth(iss))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "TOKEN_MISSING")
	require.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	refresh, _, err := iss.IssueRefresh("u1")
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+refresh)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "TOKEN_INVALID")

	access, _, err := iss.IssueAccess("u1", "", nil)
	require.NoError(t, err)
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer "+access)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "u1", sub)
}

func TestOptionalAuth_AnonymousOnBadToken(t *testing.T) {
	iss := newIssuer(t)
	called := false
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Empty(t, GetUserID(r.Context()))
	}), OptionalAuth(iss))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.True(t, called)
}
