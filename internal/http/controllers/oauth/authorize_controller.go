package oauth

import (
	"errors"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/oauth"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
)

// AuthorizeController maneja GET /oauth/authorize.
type AuthorizeController struct {
	service svc.Service
}

func NewAuthorizeController(s svc.Service) *AuthorizeController {
	return &AuthorizeController{service: s}
}

// Authorize valida cliente y redirect_uri, crea la interacción y redirige
// a la UI de login. Los errores nunca redirigen: la redirect_uri todavía
// no es confiable.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	req := dto.AuthorizeRequest{
		ResponseType: strings.TrimSpace(q.Get("response_type")),
		ClientID:     strings.TrimSpace(q.Get("client_id")),
		RedirectURI:  strings.TrimSpace(q.Get("redirect_uri")),
		Scope:        strings.TrimSpace(q.Get("scope")),
		State:        q.Get("state"),
		Nonce:        q.Get("nonce"),
	}

	logger.From(ctx).Debug("authorize request",
		logger.Layer("controller"),
		logger.ClientID(req.ClientID),
		logger.String("scope", req.Scope))

	res, err := c.service.StartInteraction(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrMissingParams):
			httperrors.WriteError(w, httperrors.New(http.StatusBadRequest, "invalid_request", "client_id y redirect_uri son obligatorios"))
		case errors.Is(err, svc.ErrUnsupportedResponse):
			httperrors.WriteError(w, httperrors.New(http.StatusBadRequest, "unsupported_response_type", "solo se soporta response_type=code"))
		case errors.Is(err, svc.ErrInvalidClient):
			httperrors.WriteError(w, httperrors.New(http.StatusBadRequest, "invalid_client", "client not found"))
		case errors.Is(err, svc.ErrInvalidScope):
			httperrors.WriteError(w, httperrors.New(http.StatusBadRequest, "invalid_scope", "scope malformed"))
		case errors.Is(err, svc.ErrInvalidRedirectURI):
			httperrors.WriteError(w, httperrors.New(http.StatusBadRequest, "invalid_redirect_uri", "redirect_uri not allowed"))
		default:
			logger.From(ctx).Error("authorize failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, res.LoginURL, http.StatusFound)
}
