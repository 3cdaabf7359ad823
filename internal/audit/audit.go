// Package audit registra eventos de seguridad (logins, registros, códigos
// canjeados) en un logger dedicado, separable del log operativo por el
// campo "audit".
package audit

import (
	"context"

	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"go.uber.org/zap"
)

// Eventos conocidos.
const (
	UserRegistered = "user_registered"
	PasswordLogin  = "password_login"
	OTPVerified    = "otp_verified"
	WalletLogin    = "wallet_login"
	WalletLinked   = "wallet_linked"
	WalletUnlinked = "wallet_unlinked"
	CodeExchanged  = "code_exchanged"
)

// Log escribe el evento con los campos del logger del request (request_id,
// etc.) más los que se pasen.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	l := logger.From(ctx).Named("audit")
	l.Info(event, append([]zap.Field{zap.Bool("audit", true), zap.String("event", event)}, fields...)...)
}
