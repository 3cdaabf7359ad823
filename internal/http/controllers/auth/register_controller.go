package auth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/auth"
)

// RegisterController maneja POST /auth/register.
type RegisterController struct {
	service svc.Service
}

func NewRegisterController(s svc.Service) *RegisterController {
	return &RegisterController{service: s}
}

func (c *RegisterController) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if err := helpers.Validate(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Register(r.Context(), req)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, res)
}
