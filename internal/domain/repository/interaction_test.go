package repository

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInteractionDetails_JSONKeepsTag(t *testing.T) {
	in := NewOIDCDetails(OIDCLoginDetails{
		ClientID:    "app-1",
		TenantID:    "t-1",
		RedirectURI: "https://app.test/callback",
		Scope:       "openid email",
		Nonce:       "n1",
	})

	b, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"oidc_login","data":{"client_id":"app-1","tenant_id":"t-1","redirect_uri":"https://app.test/callback","scope":"openid email","nonce":"n1"}}`, string(b))

	var out InteractionDetails
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, InteractionOIDCLogin, out.Type)
	require.Nil(t, out.OTP)
	require.Nil(t, out.Wallet)
	require.Equal(t, "n1", out.OIDC.Nonce)
	require.False(t, out.OIDC.Consented())
}

func TestInteractionDetails_RejectsCrossTagFields(t *testing.T) {
	// un payload wallet con campos de otp no debe decodificar
	raw := `{"type":"wallet_challenge","data":{"address":"GABC","nonce":"x","code_hash":"y"}}`
	var out InteractionDetails
	err := json.Unmarshal([]byte(raw), &out)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestInteractionDetails_Validate(t *testing.T) {
	cases := []struct {
		name string
		d    InteractionDetails
		ok   bool
	}{
		{"otp ok", NewOTPDetails(OTPDetails{Identifier: "a@x.com", Method: ChannelEmail, CodeHash: "h"}), true},
		{"otp bad method", NewOTPDetails(OTPDetails{Identifier: "a@x.com", Method: "fax", CodeHash: "h"}), false},
		{"wallet missing nonce", NewWalletDetails(WalletChallengeDetails{Address: "G"}), false},
		{"oidc half consented", NewOIDCDetails(OIDCLoginDetails{ClientID: "c", RedirectURI: "r", CodeHash: "h"}), false},
		{"tag mismatch", InteractionDetails{Type: InteractionOTP, Wallet: &WalletChallengeDetails{Address: "G", Nonce: "n"}}, false},
		{"two payloads", InteractionDetails{Type: InteractionOTP, OTP: &OTPDetails{}, Wallet: &WalletChallengeDetails{}}, false},
		{"unknown", InteractionDetails{Type: "magic", OTP: &OTPDetails{}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidInput)
			}
		})
	}
}

func TestInteractionDetails_LookupKey(t *testing.T) {
	require.Equal(t, "a@x.com", NewOTPDetails(OTPDetails{Identifier: "a@x.com"}).LookupKey())
	require.Equal(t, "GABC", NewWalletDetails(WalletChallengeDetails{Address: "GABC"}).LookupKey())
	require.Equal(t, "", NewOIDCDetails(OIDCLoginDetails{ClientID: "c"}).LookupKey())
	require.Equal(t, "hash", NewOIDCDetails(OIDCLoginDetails{CodeHash: "hash"}).LookupKey())
}

func TestInteractionDetails_CloneIsDeep(t *testing.T) {
	d := NewWalletDetails(WalletChallengeDetails{Address: "G1", Nonce: "n"})
	cp := d.Clone()
	cp.Wallet.Nonce = "changed"
	require.Equal(t, "n", d.Wallet.Nonce)
}
