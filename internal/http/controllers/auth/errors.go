package auth

import (
	"context"
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	authsvc "github.com/dropDatabas3/hellobroker/internal/http/services/auth"
	otpsvc "github.com/dropDatabas3/hellobroker/internal/http/services/otp"
	walletsvc "github.com/dropDatabas3/hellobroker/internal/http/services/wallet"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/dropDatabas3/hellobroker/internal/security/password"
)

// writeServiceError traduce los errores de los services de auth. Los
// fallos de OTP y firma se aplanan a un único mensaje por flujo.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var policyErr *authsvc.PolicyError
	switch {
	case errors.As(err, &policyErr):
		httperrors.WriteError(w, httperrors.ErrInvalidFormat.WithDetail("password: "+password.Describe(policyErr.Reasons)))

	case errors.Is(err, authsvc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case errors.Is(err, authsvc.ErrInvalidClient):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("tenant o client inválido"))
	case errors.Is(err, authsvc.ErrIdentifierInUse):
		httperrors.WriteError(w, httperrors.ErrIdentifierInUse)
	case errors.Is(err, authsvc.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUserNotFound)
	case errors.Is(err, authsvc.ErrSignatureRequired):
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("signature"))

	case errors.Is(err, otpsvc.ErrInvalidOrExpired):
		httperrors.WriteError(w, httperrors.ErrOTPInvalid)
	case errors.Is(err, otpsvc.ErrClientNotFound):
		httperrors.WriteError(w, httperrors.ErrClientNotFound)
	case errors.Is(err, otpsvc.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUserNotFound)
	case errors.Is(err, otpsvc.ErrInvalidChannel), errors.Is(err, otpsvc.ErrMissingFields):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))
	case errors.Is(err, otpsvc.ErrDispatchFailed):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))

	case errors.Is(err, walletsvc.ErrInvalidAddress):
		httperrors.WriteError(w, httperrors.ErrInvalidFormat.WithDetail("address"))
	case errors.Is(err, walletsvc.ErrChallengeNotFound), errors.Is(err, walletsvc.ErrSignatureInvalid):
		httperrors.WriteError(w, httperrors.ErrSignatureInvalid)
	case errors.Is(err, walletsvc.ErrNotLinked):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("no wallet linked"))

	default:
		logger.From(ctx).Error("auth request failed", logger.Layer("controller"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
	}
}
