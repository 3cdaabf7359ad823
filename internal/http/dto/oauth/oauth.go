// Package oauth contiene los DTOs de /oauth y de la interacción de login.
package oauth

// AuthorizeRequest GET /oauth/authorize
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
	Nonce        string
}

// AuthorizeResult resultado de iniciar la interacción.
type AuthorizeResult struct {
	InteractionID string
	LoginURL      string
}

// InteractionDetails GET /auth/interaction/{id}
type InteractionDetails struct {
	InteractionID string   `json:"interactionId"`
	ClientID      string   `json:"clientId"`
	ClientName    string   `json:"clientName"`
	TenantName    string   `json:"tenantName"`
	Logo          string   `json:"logo,omitempty"`
	Scopes        []string `json:"scopes"`
}

// InteractionLoginRequest POST /auth/interaction/login. Se autentica con
// email+password, o con userId más un bearer token del mismo usuario.
type InteractionLoginRequest struct {
	InteractionID string `json:"interactionId" validate:"required"`
	Email         string `json:"email,omitempty" validate:"required_with=Password"`
	Password      string `json:"password,omitempty" validate:"required_with=Email"`
	UserID        string `json:"userId,omitempty"`
}

// InteractionLoginResponse 200 de /auth/interaction/login
type InteractionLoginResponse struct {
	RedirectURI string `json:"redirectUri"`
}

// TokenRequest POST /oauth/token
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

// TokenResponse RFC 6749 §5.1 más id_token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope,omitempty"`
}
