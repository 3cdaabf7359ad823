package auth

// OTPRequest POST /auth/otp/request
type OTPRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=email phone"`
	ClientID   string `json:"clientId" validate:"required"`
}

// OTPVerifyRequest POST /auth/otp/verify
type OTPVerifyRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Code       string `json:"code" validate:"required,numeric,len=6"`
}

// SuccessResponse {success: true}
type SuccessResponse struct {
	Success bool `json:"success"`
}

// NonceResponse GET /auth/nonce/{address}
type NonceResponse struct {
	Nonce string `json:"nonce"`
}

// WalletLoginRequest POST /auth/wallet/login
type WalletLoginRequest struct {
	Address   string `json:"address" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}
