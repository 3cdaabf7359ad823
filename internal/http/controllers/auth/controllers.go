// Package auth contiene los controllers de /auth.
package auth

import (
	"github.com/dropDatabas3/hellobroker/internal/http/services"
)

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Register *RegisterController
	Login    *LoginController
	Profile  *ProfileController
	OTP      *OTPController
	Wallet   *WalletController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(s services.Services) *Controllers {
	return &Controllers{
		Register: NewRegisterController(s.Auth),
		Login:    NewLoginController(s.Auth),
		Profile:  NewProfileController(s.Auth),
		OTP:      NewOTPController(s.OTP),
		Wallet:   NewWalletController(s.Wallet),
	}
}
