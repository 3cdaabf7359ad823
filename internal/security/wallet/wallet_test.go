package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16XModem_KnownVector(t *testing.T) {
	// vector estándar de CRC-16/XMODEM
	require.Equal(t, uint16(0x31C3), crc16XModem([]byte("123456789")))
}

func TestEncodeDecodeAddress(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	addr, err := EncodeAddress(pub)
	require.NoError(t, err)
	require.Len(t, addr, 56)
	require.Equal(t, byte('G'), addr[0])

	got, err := DecodeAddress(addr)
	require.NoError(t, err)
	require.Equal(t, pub, got)
}

func TestDecodeAddress_ZeroKeyVector(t *testing.T) {
	// cuenta con clave pública de 32 ceros
	addr, err := EncodeAddress(make([]byte, 32))
	require.NoError(t, err)
	require.Equal(t, "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF", addr)
}

func TestDecodeAddress_Rejects(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(rand.Reader)
	addr, _ := EncodeAddress(pub)

	flipped := []byte(addr)
	if flipped[10] == 'A' {
		flipped[10] = 'B'
	} else {
		flipped[10] = 'A'
	}

	for _, bad := range []string{"", "GABC", string(flipped), "S" + addr[1:]} {
		_, err := DecodeAddress(bad)
		require.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestVerify(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	addr, _ := EncodeAddress(pub)
	nonce := []byte("Zm9vYmFyYmF6cXV4")
	sig := ed25519.Sign(priv, nonce)

	require.NoError(t, Verify(addr, nonce, base64.StdEncoding.EncodeToString(sig)))
	require.NoError(t, Verify(addr, nonce, base64.RawURLEncoding.EncodeToString(sig)))
	require.NoError(t, Verify(addr, nonce, hex.EncodeToString(sig)))

	require.ErrorIs(t, Verify(addr, []byte("other nonce"), base64.StdEncoding.EncodeToString(sig)), ErrInvalidSignature)
	require.ErrorIs(t, Verify("GBAD", nonce, base64.StdEncoding.EncodeToString(sig)), ErrInvalidSignature)
	require.ErrorIs(t, Verify(addr, nonce, "not-a-signature"), ErrInvalidSignature)
}
