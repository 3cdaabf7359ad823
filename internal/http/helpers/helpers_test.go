package helpers

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/security/wallet"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email   string  `json:"email" validate:"required,email"`
	Code    string  `json:"code" validate:"omitempty,numeric,len=6"`
	Address *string `json:"address,omitempty" validate:"omitempty,stellar"`
}

func TestValidate(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr, err := wallet.EncodeAddress(pub)
	require.NoError(t, err)
	bad := "GBAD"

	require.NoError(t, Validate(sample{Email: "a@x.test", Code: "123456", Address: &addr}))

	err = Validate(sample{})
	var appErr *httperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "MISSING_FIELDS", appErr.Code)
	require.Equal(t, "email", appErr.Detail)

	err = Validate(sample{Email: "a@x.test", Code: "12ab", Address: &bad})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_FORMAT", appErr.Code)
	require.Equal(t, "code, address", appErr.Detail)
}

func TestReadJSON(t *testing.T) {
	cases := []struct {
		name   string
		ct     string
		body   string
		ok     bool
		status int
	}{
		{"ok", "application/json", `{"email":"a@x.test"}`, true, 0},
		{"wrong content type", "text/plain", `{}`, false, http.StatusBadRequest},
		{"broken json", "application/json", `{"email":`, false, http.StatusBadRequest},
		{"too large", "application/json", `{"email":"` + strings.Repeat("a", maxBodySize) + `"}`, false, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			r.Header.Set("Content-Type", tc.ct)
			w := httptest.NewRecorder()

			var v sample
			require.Equal(t, tc.ok, ReadJSON(w, r, &v))
			if tc.ok {
				require.Equal(t, "a@x.test", v.Email)
				return
			}
			require.Equal(t, tc.status, w.Code)
		})
	}
}

func TestReadBody_Form(t *testing.T) {
	form := url.Values{"email": {"a@x.test"}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	var v sample
	ok := ReadBody(w, r, &v, func(f url.Values) { v.Email = f.Get("email") })
	require.True(t, ok)
	require.Equal(t, "a@x.test", v.Email)
}
