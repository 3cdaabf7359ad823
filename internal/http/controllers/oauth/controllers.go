// Package oauth contiene los controllers del authorization code flow y de
// la interacción que consume la UI de login.
package oauth

import "github.com/dropDatabas3/hellobroker/internal/http/services"

// Controllers agrupa los controllers OAuth.
type Controllers struct {
	Authorize   *AuthorizeController
	Token       *TokenController
	Interaction *InteractionController
}

func NewControllers(s services.Services) *Controllers {
	return &Controllers{
		Authorize:   NewAuthorizeController(s.OAuth),
		Token:       NewTokenController(s.OAuth),
		Interaction: NewInteractionController(s.OAuth),
	}
}
