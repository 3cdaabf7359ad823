package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	"github.com/dropDatabas3/hellobroker/internal/http/middlewares"
	svc "github.com/dropDatabas3/hellobroker/internal/http/services/wallet"
	"github.com/go-chi/chi/v5"
)

// WalletController maneja nonce, login y unlink de wallets.
type WalletController struct {
	service svc.Service
}

func NewWalletController(s svc.Service) *WalletController {
	return &WalletController{service: s}
}

// Nonce GET /auth/nonce/{address}
func (c *WalletController) Nonce(w http.ResponseWriter, r *http.Request) {
	nonce, err := c.service.Nonce(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.NonceResponse{Nonce: nonce})
}

// Login POST /auth/wallet/login
func (c *WalletController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.WalletLoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := helpers.Validate(req); err != nil {
		httperrors.WriteError(w, httperrors.ErrSignatureInvalid)
		return
	}
	pair, err := c.service.Login(r.Context(), req.Address, req.Signature)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeTokens(w, pair)
}

// Unlink POST /auth/wallet/unlink. Requiere RequireAuth.
func (c *WalletController) Unlink(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.GetUserID(r.Context())
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	if err := c.service.Unlink(r.Context(), userID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
