package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dropDatabas3/hellobroker/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNew_MemoryDefaults(t *testing.T) {
	cfg := config.Defaults()
	a := newApp(t, cfg)

	require.Nil(t, a.Redis)
	require.Nil(t, a.Store.Pool())
	require.Equal(t, http.StatusOK, get(t, a.Handler, "/readyz").Code)

	rec := get(t, a.Handler, "/.well-known/openid-configuration")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), cfg.JWT.Issuer)

	require.Equal(t, http.StatusOK, get(t, a.Handler, "/metrics").Code)
	require.Equal(t, cfg.Server.Addr, a.Server().Addr)
}

func TestNew_KeysFileGeneratedThenReused(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWT.KeysFile = filepath.Join(t.TempDir(), "keys.json")

	first := newApp(t, cfg)
	k1, err := first.Issuer.Keys.Active()
	require.NoError(t, err)

	second := newApp(t, cfg)
	k2, err := second.Issuer.Keys.Active()
	require.NoError(t, err)
	require.Equal(t, k1.KID, k2.KID)
	require.Equal(t, k1.Pub, k2.Pub)
}

func TestNew_ProdRequiresSecretsAndSMTP(t *testing.T) {
	cfg := config.Defaults()
	cfg.App.Env = "prod"
	_, err := New(context.Background(), cfg, Options{Registry: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "SECRETBOX_MASTER_KEY")

	cfg.Security.SecretBoxMasterKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	_, err = New(context.Background(), cfg, Options{Registry: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "smtp.host")
}

func TestNew_RedisBackendsAndRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Defaults()
	cfg.Cache.Kind = "redis"
	cfg.Cache.Redis.Addr = mr.Addr()
	cfg.Interactions.Backend = "redis"
	cfg.Rate.Enabled = true
	cfg.Rate.Login.Limit = 1
	require.NoError(t, cfg.Validate())

	a := newApp(t, cfg)
	require.NotNil(t, a.Redis)

	rec := get(t, a.Handler, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cache")

	login := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		a.Handler.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusBadRequest, login())
	require.Equal(t, http.StatusTooManyRequests, login())

	keys := mr.Keys()
	var counters int
	for _, k := range keys {
		if strings.HasPrefix(k, cfg.Cache.Redis.Prefix+"rl:") {
			counters++
		}
	}
	require.Equal(t, 1, counters)
}

func TestLimits_DisabledLeavesGroupsOpen(t *testing.T) {
	a := &App{Config: config.Defaults()}
	l := a.limits()
	require.Nil(t, l.Login)
	require.Nil(t, l.Token)
}
