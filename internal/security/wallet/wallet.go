// Package wallet verifica firmas de wallets Stellar.
//
// Una dirección de cuenta (G...) es un strkey: base32 de
// version byte (6<<3) + clave pública Ed25519 (32 bytes) + CRC16-XModem
// little-endian. El wallet firma los bytes crudos del nonce con Ed25519.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

// Provider es el nombre de provider usado en identity.
const Provider = "stellar"

const versionAccountID byte = 6 << 3

var (
	ErrInvalidAddress   = errors.New("wallet: invalid address")
	ErrInvalidSignature = errors.New("wallet: invalid signature")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// DecodeAddress extrae la clave pública de una dirección G...
func DecodeAddress(address string) (ed25519.PublicKey, error) {
	address = strings.TrimSpace(address)
	if len(address) != 56 || address[0] != 'G' {
		return nil, ErrInvalidAddress
	}
	raw, err := b32.DecodeString(address)
	if err != nil || len(raw) != 1+ed25519.PublicKeySize+2 {
		return nil, ErrInvalidAddress
	}
	if raw[0] != versionAccountID {
		return nil, ErrInvalidAddress
	}
	body, sum := raw[:len(raw)-2], raw[len(raw)-2:]
	if binary.LittleEndian.Uint16(sum) != crc16XModem(body) {
		return nil, ErrInvalidAddress
	}
	return ed25519.PublicKey(bytes.Clone(body[1:])), nil
}

// EncodeAddress arma la dirección G... de una clave pública.
func EncodeAddress(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidAddress
	}
	body := make([]byte, 0, 1+len(pub)+2)
	body = append(body, versionAccountID)
	body = append(body, pub...)
	body = binary.LittleEndian.AppendUint16(body, crc16XModem(body))
	return b32.EncodeToString(body), nil
}

// ValidAddress reporta si la dirección tiene forma y checksum válidos.
func ValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

// DecodeSignature acepta base64 (std/url, con o sin padding) o hex.
func DecodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return nil, ErrInvalidSignature
	}
	if len(sig) == 2*ed25519.SignatureSize {
		if b, err := hex.DecodeString(sig); err == nil {
			return b, nil
		}
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(sig); err == nil && len(b) == ed25519.SignatureSize {
			return b, nil
		}
	}
	return nil, ErrInvalidSignature
}

// Verify comprueba que signature sea una firma de message hecha por la
// clave de address. Cualquier falla (dirección, encoding o firma) devuelve
// ErrInvalidSignature, sin distinguir el motivo.
func Verify(address string, message []byte, signature string) error {
	pub, err := DecodeAddress(address)
	if err != nil {
		return ErrInvalidSignature
	}
	sig, err := DecodeSignature(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(pub, message, sig) {
		return ErrInvalidSignature
	}
	return nil
}

func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
