package auth

import (
	"net/http"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/otp"
)

// OTPController maneja /auth/otp/request y /auth/otp/verify.
type OTPController struct {
	service svc.Service
}

func NewOTPController(s svc.Service) *OTPController {
	return &OTPController{service: s}
}

func (c *OTPController) Request(w http.ResponseWriter, r *http.Request) {
	var req dto.OTPRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := helpers.Validate(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := c.service.Request(r.Context(), req.Identifier, repository.Channel(req.Type), req.ClientID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

func (c *OTPController) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.OTPVerifyRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	// un código con formato inválido es un código inválido
	if err := helpers.Validate(req); err != nil {
		httperrors.WriteError(w, httperrors.ErrOTPInvalid)
		return
	}
	pair, err := c.service.Verify(r.Context(), req.Identifier, req.Code)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeTokens(w, pair)
}
