package auth

import (
	"net/http"
	"net/url"

	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/auth"
	"github.com/dropDatabas3/hellobroker/internal/http/services/tokens"
)

// LoginController maneja POST /auth/login (JSON o form).
type LoginController struct {
	service svc.Service
}

func NewLoginController(s svc.Service) *LoginController {
	return &LoginController{service: s}
}

func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	ok := helpers.ReadBody(w, r, &req, func(f url.Values) {
		req.Email = f.Get("email")
		req.Password = f.Get("password")
		req.TenantID = f.Get("tenant_id")
		req.ClientID = f.Get("client_id")
	})
	if !ok {
		return
	}
	if err := helpers.Validate(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	pair, err := c.service.Login(r.Context(), req)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeTokens(w, pair)
}

func writeTokens(w http.ResponseWriter, pair *tokens.Pair) {
	helpers.WriteJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	})
}
