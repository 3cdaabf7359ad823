package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	"github.com/dropDatabas3/hellobroker/internal/http/middlewares"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/auth"
)

// ProfileController maneja GET y PATCH /auth/profile. Requiere RequireAuth.
type ProfileController struct {
	service svc.Service
}

func NewProfileController(s svc.Service) *ProfileController {
	return &ProfileController{service: s}
}

func (c *ProfileController) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.GetUserID(r.Context())
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	p, err := c.service.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, p)
}

func (c *ProfileController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.GetUserID(r.Context())
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	var req dto.ProfilePatch
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := helpers.Validate(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	p, err := c.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, p)
}
