package helpers

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/security/wallet"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// usa el tag json como nombre de campo en los mensajes
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("stellar", func(fl validator.FieldLevel) bool {
			return wallet.ValidAddress(fl.Field().String())
		})
	})
	return validate
}

// Validate corre las reglas `validate:"..."` del DTO. Un campo requerido
// ausente es ErrMissingFields; cualquier otra regla es ErrInvalidFormat.
// El detalle nombra los campos con su nombre JSON.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return httperrors.ErrBadRequest.WithCause(err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" || strings.HasPrefix(fe.Tag(), "required_") {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fe.Field())
	}
	if len(missing) > 0 {
		return httperrors.ErrMissingFields.WithDetail(strings.Join(missing, ", "))
	}
	return httperrors.ErrInvalidFormat.WithDetail(strings.Join(invalid, ", "))
}
