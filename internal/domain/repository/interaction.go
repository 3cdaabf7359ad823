package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InteractionType es el tag del union de Interaction.details.
type InteractionType string

const (
	InteractionOTP             InteractionType = "otp"
	InteractionWalletChallenge InteractionType = "wallet_challenge"
	InteractionOIDCLogin       InteractionType = "oidc_login"
)

// Valid reporta si el tipo es conocido.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionOTP, InteractionWalletChallenge, InteractionOIDCLogin:
		return true
	}
	return false
}

// OTPDetails payload de un desafío OTP. El código nunca se guarda en claro.
type OTPDetails struct {
	Identifier string  `json:"identifier"`
	Method     Channel `json:"method"`
	CodeHash   string  `json:"code_hash"`
	TenantID   string  `json:"tenant_id,omitempty"`
	ClientID   string  `json:"client_id,omitempty"`
}

// WalletChallengeDetails payload de un desafío de firma.
type WalletChallengeDetails struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
}

// OIDCLoginDetails payload de un intento de autorización.
// CodeHash y UserID quedan vacíos mientras el intento está pendiente.
type OIDCLoginDetails struct {
	ClientID    string `json:"client_id"`
	TenantID    string `json:"tenant_id"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope,omitempty"`
	State       string `json:"state,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	CodeHash    string `json:"code_hash,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// Consented indica si ya se adjuntó código y usuario.
func (d *OIDCLoginDetails) Consented() bool {
	return d != nil && d.CodeHash != "" && d.UserID != ""
}

// InteractionDetails es el union etiquetado. Exactamente un payload,
// el que corresponde a Type, debe estar presente.
type InteractionDetails struct {
	Type   InteractionType
	OTP    *OTPDetails
	Wallet *WalletChallengeDetails
	OIDC   *OIDCLoginDetails
}

// NewOTPDetails arma el union para un OTP.
func NewOTPDetails(d OTPDetails) InteractionDetails {
	return InteractionDetails{Type: InteractionOTP, OTP: &d}
}

// NewWalletDetails arma el union para un desafío de wallet.
func NewWalletDetails(d WalletChallengeDetails) InteractionDetails {
	return InteractionDetails{Type: InteractionWalletChallenge, Wallet: &d}
}

// NewOIDCDetails arma el union para un login OIDC.
func NewOIDCDetails(d OIDCLoginDetails) InteractionDetails {
	return InteractionDetails{Type: InteractionOIDCLogin, OIDC: &d}
}

// Validate chequea el tag y el schema del payload.
func (d InteractionDetails) Validate() error {
	present := 0
	for _, ok := range []bool{d.OTP != nil, d.Wallet != nil, d.OIDC != nil} {
		if ok {
			present++
		}
	}
	if present != 1 {
		return fmt.Errorf("%w: interaction details must carry exactly one payload", ErrInvalidInput)
	}

	switch d.Type {
	case InteractionOTP:
		if d.OTP == nil {
			return fmt.Errorf("%w: otp payload missing", ErrInvalidInput)
		}
		if strings.TrimSpace(d.OTP.Identifier) == "" || d.OTP.CodeHash == "" || !d.OTP.Method.Valid() {
			return fmt.Errorf("%w: otp requires identifier, method and code", ErrInvalidInput)
		}
	case InteractionWalletChallenge:
		if d.Wallet == nil {
			return fmt.Errorf("%w: wallet payload missing", ErrInvalidInput)
		}
		if strings.TrimSpace(d.Wallet.Address) == "" || d.Wallet.Nonce == "" {
			return fmt.Errorf("%w: wallet_challenge requires address and nonce", ErrInvalidInput)
		}
	case InteractionOIDCLogin:
		if d.OIDC == nil {
			return fmt.Errorf("%w: oidc payload missing", ErrInvalidInput)
		}
		if d.OIDC.ClientID == "" || d.OIDC.RedirectURI == "" {
			return fmt.Errorf("%w: oidc_login requires client_id and redirect_uri", ErrInvalidInput)
		}
		if (d.OIDC.CodeHash == "") != (d.OIDC.UserID == "") {
			return fmt.Errorf("%w: oidc_login code and user must be attached together", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown interaction type %q", ErrInvalidInput, d.Type)
	}
	return nil
}

// LookupKey es la columna indexada usada para encontrar la interacción
// sin conocer su id: identificador (otp), address (wallet) o hash del
// código (oidc_login ya consentido).
func (d InteractionDetails) LookupKey() string {
	switch d.Type {
	case InteractionOTP:
		if d.OTP != nil {
			return d.OTP.Identifier
		}
	case InteractionWalletChallenge:
		if d.Wallet != nil {
			return d.Wallet.Address
		}
	case InteractionOIDCLogin:
		if d.OIDC != nil {
			return d.OIDC.CodeHash
		}
	}
	return ""
}

// Clone devuelve una copia profunda (los payloads son punteros).
func (d InteractionDetails) Clone() InteractionDetails {
	out := InteractionDetails{Type: d.Type}
	if d.OTP != nil {
		cp := *d.OTP
		out.OTP = &cp
	}
	if d.Wallet != nil {
		cp := *d.Wallet
		out.Wallet = &cp
	}
	if d.OIDC != nil {
		cp := *d.OIDC
		out.OIDC = &cp
	}
	return out
}

type detailsEnvelope struct {
	Type InteractionType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON serializa como {"type": ..., "data": {...}}.
func (d InteractionDetails) MarshalJSON() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var payload any
	switch d.Type {
	case InteractionOTP:
		payload = d.OTP
	case InteractionWalletChallenge:
		payload = d.Wallet
	case InteractionOIDCLogin:
		payload = d.OIDC
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(detailsEnvelope{Type: d.Type, Data: data})
}

// UnmarshalJSON decodifica el envelope y rechaza campos ajenos al tag.
func (d *InteractionDetails) UnmarshalJSON(b []byte) error {
	var env detailsEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	out := InteractionDetails{Type: env.Type}
	var target any
	switch env.Type {
	case InteractionOTP:
		out.OTP = &OTPDetails{}
		target = out.OTP
	case InteractionWalletChallenge:
		out.Wallet = &WalletChallengeDetails{}
		target = out.Wallet
	case InteractionOIDCLogin:
		out.OIDC = &OIDCLoginDetails{}
		target = out.OIDC
	default:
		return fmt.Errorf("%w: unknown interaction type %q", ErrInvalidInput, env.Type)
	}

	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidInput, env.Type, err)
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*d = out
	return nil
}

// Interaction es el registro efímero, de un solo uso, que transporta el
// estado de un flujo entre requests.
type Interaction struct {
	ID        string
	Details   InteractionDetails
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reporta si la interacción sigue vigente en now.
func (i *Interaction) Active(now time.Time) bool {
	return i != nil && i.ExpiresAt.After(now)
}

// CreateInteractionInput contiene los datos para persistir una interacción.
type CreateInteractionInput struct {
	ID      string
	Details InteractionDetails
	TTL     time.Duration
}

// InteractionRepository define operaciones sobre interacciones.
// Toda lectura filtra por expires_at > now.
type InteractionRepository interface {
	// Create valida los details y persiste con expires_at = now + TTL.
	Create(ctx context.Context, input CreateInteractionInput) (*Interaction, error)

	// GetActive retorna ErrNotFound si no existe o expiró.
	GetActive(ctx context.Context, id string) (*Interaction, error)

	// ListActiveByLookup devuelve las interacciones vigentes del tipo con esa
	// lookup key, de la más nueva a la más vieja.
	ListActiveByLookup(ctx context.Context, t InteractionType, lookupKey string) ([]Interaction, error)

	// Mutate aplica fn a los details de una interacción vigente de forma
	// atómica. El tipo no puede cambiar. Si fn falla no se persiste nada.
	Mutate(ctx context.Context, id string, fn func(*InteractionDetails) error) (*Interaction, error)

	// ConsumeWith bloquea la interacción vigente, ejecuta fn y la borra
	// solo si fn no devuelve error. Si no existe o expiró retorna
	// ErrNotFound, incluso cuando otro request la consumió primero.
	// fn recibe el ctx que deben usar sus escrituras: en backends SQL lleva
	// la transacción del consumo y todo se confirma o descarta junto.
	ConsumeWith(ctx context.Context, id string, fn func(ctx context.Context, ix *Interaction) error) error

	// DeleteExpired borra las interacciones con expires_at <= before.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
