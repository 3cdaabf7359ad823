package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/util/atomicwrite"
)

var (
	ErrNoActiveKey = errors.New("no_active_signing_key")
	ErrUnknownKID  = errors.New("unknown_kid")
)

// SigningKey es una clave Ed25519 identificada por kid.
type SigningKey struct {
	KID  string
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
}

// GenerateSigningKey genera una clave nueva con kid basado en la fecha.
func GenerateSigningKey() (*SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	kid := "k-" + time.Now().UTC().Format("20060102T150405Z")
	return &SigningKey{KID: kid, Priv: priv, Pub: pub}, nil
}

// Keyring mantiene la clave activa (firma) y las retiradas (solo verifican).
type Keyring struct {
	mu       sync.RWMutex
	active   *SigningKey
	retiring []*SigningKey
}

// NewKeyring crea un keyring con la clave activa dada.
func NewKeyring(active *SigningKey, retiring ...*SigningKey) *Keyring {
	return &Keyring{active: active, retiring: retiring}
}

// Active devuelve la clave de firma.
func (k *Keyring) Active() (*SigningKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active == nil {
		return nil, ErrNoActiveKey
	}
	return k.active, nil
}

// PublicKey busca la pública por kid entre activa y retiradas.
func (k *Keyring) PublicKey(kid string) (ed25519.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, key := range k.all() {
		if key.KID == kid {
			return key.Pub, nil
		}
	}
	return nil, ErrUnknownKID
}

// Rotate pasa la activa a retiradas y activa next.
func (k *Keyring) Rotate(next *SigningKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active != nil {
		k.retiring = append([]*SigningKey{k.active}, k.retiring...)
	}
	k.active = next
}

// Keys devuelve activa + retiradas (en ese orden).
func (k *Keyring) Keys() []*SigningKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.all()
}

func (k *Keyring) all() []*SigningKey {
	out := make([]*SigningKey, 0, 1+len(k.retiring))
	if k.active != nil {
		out = append(out, k.active)
	}
	return append(out, k.retiring...)
}

// ─── Persistencia en archivo ───

type keyFileEntry struct {
	KID  string `json:"kid"`
	Seed string `json:"seed"` // base64 de la seed Ed25519 (32 bytes)
}

type keyFile struct {
	Active   keyFileEntry   `json:"active"`
	Retiring []keyFileEntry `json:"retiring,omitempty"`
}

func (e keyFileEntry) key() (*SigningKey, error) {
	seed, err := base64.StdEncoding.DecodeString(e.Seed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: invalid seed for kid %q", e.KID)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &SigningKey{KID: e.KID, Priv: priv, Pub: priv.Public().(ed25519.PublicKey)}, nil
}

func entryOf(k *SigningKey) keyFileEntry {
	return keyFileEntry{KID: k.KID, Seed: base64.StdEncoding.EncodeToString(k.Priv.Seed())}
}

// LoadKeyring lee el archivo de claves generado por `hellobroker keys generate`.
func LoadKeyring(path string) (*Keyring, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f keyFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("jwt: parse key file: %w", err)
	}
	active, err := f.Active.key()
	if err != nil {
		return nil, err
	}
	kr := NewKeyring(active)
	for _, e := range f.Retiring {
		rk, err := e.key()
		if err != nil {
			return nil, err
		}
		kr.retiring = append(kr.retiring, rk)
	}
	return kr, nil
}

// SaveKeyring escribe el keyring con permisos 0600.
func SaveKeyring(path string, kr *Keyring) error {
	keys := kr.Keys()
	if len(keys) == 0 {
		return ErrNoActiveKey
	}
	f := keyFile{Active: entryOf(keys[0])}
	for _, k := range keys[1:] {
		f.Retiring = append(f.Retiring, entryOf(k))
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return atomicwrite.WriteFile(path, b, 0o600, 0o700)
}
