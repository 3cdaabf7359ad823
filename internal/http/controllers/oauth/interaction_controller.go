package oauth

import (
	"errors"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	"github.com/dropDatabas3/hellobroker/internal/http/middlewares"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/oauth"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/go-chi/chi/v5"
)

// InteractionController sirve a la UI de login hosteada.
type InteractionController struct {
	service svc.Service
}

func NewInteractionController(s svc.Service) *InteractionController {
	return &InteractionController{service: s}
}

// Details GET /auth/interaction/{id}
func (c *InteractionController) Details(w http.ResponseWriter, r *http.Request) {
	res, err := c.service.GetInteractionDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeInteractionError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Login POST /auth/interaction/login. Con email+password autentica en el
// tenant de la interacción; con userId exige un bearer token de ese mismo
// usuario (OptionalAuth en la ruta).
func (c *InteractionController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.InteractionLoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := helpers.Validate(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	var (
		loc string
		err error
	)
	switch {
	case req.Email != "":
		loc, err = c.service.LoginWithPassword(ctx, req.InteractionID, req.Email, req.Password)
	case req.UserID != "":
		sub := middlewares.GetUserID(ctx)
		if sub == "" {
			httperrors.WriteError(w, httperrors.ErrTokenMissing)
			return
		}
		if sub != req.UserID {
			httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("userId no coincide con el token"))
			return
		}
		loc, err = c.service.LoginInteraction(ctx, req.InteractionID, req.UserID)
	default:
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email y password, o userId"))
		return
	}
	if err != nil {
		writeInteractionError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.InteractionLoginResponse{RedirectURI: loc})
}

func writeInteractionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, svc.ErrInvalidInteraction):
		httperrors.WriteError(w, httperrors.ErrInteractionInvalid)
	case errors.Is(err, svc.ErrAlreadyConsented):
		httperrors.WriteError(w, httperrors.ErrInteractionInvalid.WithDetail("already consented"))
	case errors.Is(err, svc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case errors.Is(err, svc.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUserNotFound)
	case errors.Is(err, svc.ErrMissingParams):
		httperrors.WriteError(w, httperrors.ErrMissingFields)
	default:
		logger.From(r.Context()).Error("interaction request failed", logger.Layer("controller"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
	}
}
