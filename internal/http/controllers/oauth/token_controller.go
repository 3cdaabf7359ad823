package oauth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/oauth"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
)

// TokenController maneja POST /oauth/token (form o JSON).
type TokenController struct {
	service svc.Service
}

func NewTokenController(s svc.Service) *TokenController {
	return &TokenController{service: s}
}

func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.TokenRequest
	ok := helpers.ReadBody(w, r, &req, func(f url.Values) {
		req.GrantType = f.Get("grant_type")
		req.Code = f.Get("code")
		req.ClientID = f.Get("client_id")
		req.ClientSecret = f.Get("client_secret")
		req.RedirectURI = f.Get("redirect_uri")
	})
	if !ok {
		return
	}
	// client_secret_basic
	if id, secret, basic := r.BasicAuth(); basic {
		if req.ClientID == "" {
			req.ClientID = id
		}
		if req.ClientSecret == "" && id == req.ClientID {
			req.ClientSecret = secret
		}
	}
	req.GrantType = strings.TrimSpace(req.GrantType)
	req.ClientID = strings.TrimSpace(req.ClientID)

	res, err := c.service.ExchangeCode(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrUnsupportedGrantType):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		case errors.Is(err, svc.ErrMissingParams):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_request", "code and client_id are required")
		case errors.Is(err, svc.ErrInvalidCode):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_grant", "invalid or expired authorization code")
		case errors.Is(err, svc.ErrClientMismatch):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_grant", "client_id mismatch")
		case errors.Is(err, svc.ErrRedirectMismatch):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		case errors.Is(err, svc.ErrInvalidClient), errors.Is(err, svc.ErrInvalidClientSecret):
			httperrors.WriteOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		default:
			logger.From(ctx).Error("token exchange failed", logger.Layer("controller"), logger.Err(err))
			httperrors.WriteOAuthError(w, http.StatusInternalServerError, "server_error", "")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	helpers.WriteJSON(w, http.StatusOK, res)
}
