package router_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/http/controllers/health"
	"github.com/dropDatabas3/hellobroker/internal/http/router"
	"github.com/dropDatabas3/hellobroker/internal/http/services/servicetest"
	"github.com/dropDatabas3/hellobroker/internal/rate"
	"github.com/stretchr/testify/require"
)

type env struct {
	f      *servicetest.Fixture
	srv    *httptest.Server
	client *http.Client
}

func newEnv(t *testing.T, limits router.Limits) *env {
	t.Helper()
	f := servicetest.New(t)
	h := router.New(router.Deps{
		Services: f.Services,
		Issuer:   f.Issuer,
		Checks:   map[string]health.Pinger{"store": f.Store},
		Limits:   limits,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &env{
		f:   f,
		srv: srv,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}},
	}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := e.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.Contains(res.Header.Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return res, out
}

func TestPublicEndpoints(t *testing.T) {
	e := newEnv(t, router.Limits{})

	res, body := e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", body["status"])

	res, body = e.do(t, http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, body["keys"], 1)

	res, body = e.do(t, http.MethodGet, "/.well-known/openid-configuration", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "https://auth.test/oauth/token", body["token_endpoint"])

	res, body = e.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, "ROUTE_NOT_FOUND", body["code"])

	res, _ = e.do(t, http.MethodDelete, "/auth/login", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestRegisterLoginProfile(t *testing.T) {
	e := newEnv(t, router.Limits{})

	reg := map[string]any{"email": "grace@acme.test", "firstName": "Grace", "lastName": "Hopper", "password": servicetest.Password}
	res, body := e.do(t, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	require.NotEmpty(t, body["accessToken"])

	res, body = e.do(t, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusConflict, res.StatusCode)
	require.Equal(t, "IDENTIFIER_IN_USE", body["code"])

	res, body = e.do(t, http.MethodPost, "/auth/register", "", map[string]any{"email": "x@acme.test"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "MISSING_FIELDS", body["code"])

	res, body = e.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "grace@acme.test", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "INVALID_CREDENTIALS", body["code"])

	res, body = e.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "grace@acme.test", "password": servicetest.Password})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "no-store", res.Header.Get("Cache-Control"))
	token := body["accessToken"].(string)

	res, _ = e.do(t, http.MethodGet, "/auth/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body = e.do(t, http.MethodPatch, "/auth/profile", token, map[string]any{"lastName": "Murray Hopper"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "Murray Hopper", body["lastName"])
	require.Equal(t, "grace@acme.test", body["email"])
}

func TestOTPOverHTTP(t *testing.T) {
	e := newEnv(t, router.Limits{})
	e.f.User(t, "ada@acme.test")

	res, body := e.do(t, http.MethodPost, "/auth/otp/request", "", map[string]any{
		"identifier": "ada@acme.test", "type": "email", "clientId": e.f.App.ClientID,
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, true, body["success"])
	code := e.f.Outbox.LastCode(t, "ada@acme.test")

	res, body = e.do(t, http.MethodPost, "/auth/otp/verify", "", map[string]any{"identifier": "ada@acme.test", "code": code})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, body["accessToken"])

	res, body = e.do(t, http.MethodPost, "/auth/otp/verify", "", map[string]any{"identifier": "ada@acme.test", "code": code})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "OTP_INVALID", body["code"])
}

func TestWalletOverHTTP(t *testing.T) {
	e := newEnv(t, router.Limits{})
	w := servicetest.NewWallet(t)

	res, body := e.do(t, http.MethodGet, "/auth/nonce/GBAD", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, body = e.do(t, http.MethodPost, "/auth/wallet/login", "", map[string]any{"address": "GBAD", "signature": w.Sign(body["nonce"].(string))})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "SIGNATURE_INVALID", body["code"])

	res, body = e.do(t, http.MethodGet, "/auth/nonce/"+w.Address, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	nonce := body["nonce"].(string)

	res, body = e.do(t, http.MethodPost, "/auth/wallet/login", "", map[string]any{"address": w.Address, "signature": w.Sign("x" + nonce)})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "SIGNATURE_INVALID", body["code"])

	res, body = e.do(t, http.MethodPost, "/auth/wallet/login", "", map[string]any{"address": w.Address, "signature": w.Sign(nonce)})
	require.Equal(t, http.StatusOK, res.StatusCode)
	token := body["accessToken"].(string)

	res, _ = e.do(t, http.MethodPost, "/auth/wallet/unlink", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestAuthorizationCodeOverHTTP(t *testing.T) {
	e := newEnv(t, router.Limits{})
	u := e.f.User(t, "ada@acme.test")

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {e.f.Confidential.ClientID},
		"redirect_uri":  {servicetest.RedirectURI},
		"scope":         {"openid email"},
		"state":         {"st"},
		"nonce":         {"nn"},
	}
	res, _ := e.do(t, http.MethodGet, "/oauth/authorize?"+q.Encode(), "", nil)
	require.Equal(t, http.StatusFound, res.StatusCode)
	loc, err := url.Parse(res.Header.Get("Location"))
	require.NoError(t, err)
	interactionID := loc.Query().Get("interactionId")
	require.NotEmpty(t, interactionID)

	bad := url.Values{"client_id": {e.f.App.ClientID}, "redirect_uri": {"https://evil.test/cb"}}
	res, body := e.do(t, http.MethodGet, "/oauth/authorize?"+bad.Encode(), "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "invalid_redirect_uri", body["code"])

	res, body = e.do(t, http.MethodGet, "/auth/interaction/"+interactionID, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "Acme Backend", body["clientName"])

	// userId sin token del mismo usuario no alcanza
	res, _ = e.do(t, http.MethodPost, "/auth/interaction/login", "", map[string]any{"interactionId": interactionID, "userId": u.ID})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body = e.do(t, http.MethodPost, "/auth/interaction/login", "", map[string]any{
		"interactionId": interactionID, "email": "ada@acme.test", "password": servicetest.Password,
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	cb, err := url.Parse(body["redirectUri"].(string))
	require.NoError(t, err)
	require.Equal(t, "st", cb.Query().Get("state"))
	code := cb.Query().Get("code")

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {servicetest.RedirectURI},
	}
	post := func(secret string) (*http.Response, map[string]any) {
		req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/oauth/token", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(e.f.Confidential.ClientID, secret)
		res, err := e.client.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		return res, out
	}

	res, body = post("wrong")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "invalid_client", body["error"])

	res, body = post(servicetest.ClientSecret)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "no-store", res.Header.Get("Cache-Control"))
	require.NotEmpty(t, body["id_token"])
	require.Equal(t, "Bearer", body["token_type"])

	res, body = post(servicetest.ClientSecret)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "invalid_grant", body["error"])
}

func TestRateLimitedLogin(t *testing.T) {
	limits := router.Limits{Login: rate.Fixed{Multi: rate.NewMultiMemoryLimiter(), Limit: 2, Window: time.Hour}}
	e := newEnv(t, limits)

	creds := map[string]any{"email": "ghost@acme.test", "password": "x"}
	for i := 0; i < 2; i++ {
		res, _ := e.do(t, http.MethodPost, "/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	}
	res, body := e.do(t, http.MethodPost, "/auth/login", "", creds)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	require.NotEmpty(t, res.Header.Get("Retry-After"))
}
