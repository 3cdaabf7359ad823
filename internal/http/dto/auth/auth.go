// Package auth contiene los DTOs de /auth.
package auth

// RegisterRequest POST /auth/register
type RegisterRequest struct {
	Email         string `json:"email" validate:"required,email"`
	FirstName     string `json:"firstName" validate:"required,max=100"`
	LastName      string `json:"lastName" validate:"required,max=100"`
	Phone         string `json:"phone,omitempty" validate:"omitempty,e164"`
	Password      string `json:"password,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty" validate:"omitempty,stellar"`
	Signature     string `json:"signature,omitempty" validate:"required_with=WalletAddress"`
	TenantID      string `json:"tenantId,omitempty"`
	ClientID      string `json:"clientId,omitempty"`
}

// RegisterResponse 201 de /auth/register
type RegisterResponse struct {
	UserID       string `json:"userId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginRequest POST /auth/login (JSON o form)
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	TenantID string `json:"tenantId,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// TokenResponse respuesta de login, otp/verify y wallet/login.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Profile GET/PATCH /auth/profile
type Profile struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	EmailVerified bool   `json:"emailVerified"`
	PhoneVerified bool   `json:"phoneVerified"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// ProfilePatch PATCH /auth/profile. nil = sin cambios.
type ProfilePatch struct {
	FirstName     *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName      *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,e164"`
	WalletAddress *string `json:"walletAddress,omitempty" validate:"omitempty,stellar"`
	Signature     string  `json:"signature,omitempty"`
}
