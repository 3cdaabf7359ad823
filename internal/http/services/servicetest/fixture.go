// Package servicetest arma un broker completo sobre el store en memoria
// para los tests de services, controllers y router.
package servicetest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/http/services"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/notify"
	"github.com/dropDatabas3/hellobroker/internal/security/password"
	sectoken "github.com/dropDatabas3/hellobroker/internal/security/token"
	"github.com/dropDatabas3/hellobroker/internal/security/wallet"
	"github.com/dropDatabas3/hellobroker/internal/store"
	"github.com/dropDatabas3/hellobroker/internal/store/memory"
	"github.com/stretchr/testify/require"
)

const (
	RedirectURI  = "https://app.test/callback"
	ClientSecret = "s3cret-for-tests"
	Password     = "Correct-Horse-9"
	LoginURL     = "https://login.test"
)

// Clock es un reloj manual compartido por store e issuer.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Outbox captura los mensajes en lugar de enviarlos.
type Outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
	Fail error
}

func (o *Outbox) record(msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail != nil {
		return o.Fail
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *Outbox) SendEmail(_ context.Context, _ repository.EmailProvider, msg notify.Message) error {
	return o.record(msg)
}

func (o *Outbox) SendSMS(_ context.Context, _ repository.SMSProvider, msg notify.Message) error {
	return o.record(msg)
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

var codeRE = regexp.MustCompile(`\b\d{6}\b`)

// LastCode extrae el código del último mensaje enviado a to.
func (o *Outbox) LastCode(t testing.TB, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To == to {
			code := codeRE.FindString(o.msgs[i].Body)
			require.NotEmpty(t, code, "message without code")
			return code
		}
	}
	t.Fatalf("no message sent to %s", to)
	return ""
}

// Fixture es un broker listo: un tenant con credenciales de email, una app
// pública y una confidencial.
type Fixture struct {
	Clock    *Clock
	DB       *memory.DB
	Store    *store.Store
	Issuer   *jwtx.Issuer
	Outbox   *Outbox
	Services services.Services

	Tenant       *repository.Tenant
	App          *repository.Application
	Confidential *repository.Application
}

func New(t testing.TB) *Fixture {
	t.Helper()
	ctx := context.Background()

	clock := &Clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	db := memory.New()
	db.SetClock(clock.Now)
	st := store.FromMemory(db)

	key, err := jwtx.GenerateSigningKey()
	require.NoError(t, err)
	issuer := jwtx.NewIssuer("https://auth.test", jwtx.NewKeyring(key))
	issuer.SetClock(clock.Now)

	tenant, err := st.Tenants.Create(ctx, repository.CreateTenantInput{
		Slug:  "acme",
		Name:  "Acme",
		Email: &repository.EmailProvider{APIKey: "tenant-key", Sender: "no-reply@acme.test"},
	})
	require.NoError(t, err)

	app, err := st.Applications.Create(ctx, repository.CreateApplicationInput{
		TenantID:     tenant.ID,
		ClientID:     "acme-web",
		Name:         "Acme Web",
		LogoURL:      "https://acme.test/logo.png",
		RedirectURIs: []string{RedirectURI},
	})
	require.NoError(t, err)

	conf, err := st.Applications.Create(ctx, repository.CreateApplicationInput{
		TenantID:         tenant.ID,
		ClientID:         "acme-backend",
		Name:             "Acme Backend",
		ClientSecretHash: sectoken.SHA256Base64URL(ClientSecret),
		RedirectURIs:     []string{RedirectURI},
	})
	require.NoError(t, err)

	outbox := &Outbox{}
	svcs := services.New(services.Deps{
		Store:    st,
		Issuer:   issuer,
		Notifier: &notify.Dispatcher{Email: outbox, SMS: outbox},
		LoginURL: LoginURL,
		Policy:   password.Policy{MinLength: 8},
	})

	return &Fixture{
		Clock:        clock,
		DB:           db,
		Store:        st,
		Issuer:       issuer,
		Outbox:       outbox,
		Services:     svcs,
		Tenant:       tenant,
		App:          app,
		Confidential: conf,
	}
}

// User crea un usuario del tenant con password.
func (f *Fixture) User(t testing.TB, email string) *repository.User {
	t.Helper()
	hash, err := password.Hash(password.Default, Password)
	require.NoError(t, err)
	u, err := f.Store.Users.Create(context.Background(), repository.CreateUserInput{
		TenantID:     f.Tenant.ID,
		PrimaryEmail: email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return u
}

// Wallet es un par de claves Stellar de prueba.
type Wallet struct {
	Address string
	priv    ed25519.PrivateKey
}

func NewWallet(t testing.TB) *Wallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr, err := wallet.EncodeAddress(pub)
	require.NoError(t, err)
	return &Wallet{Address: addr, priv: priv}
}

// Sign firma el mensaje y devuelve la firma en base64.
func (w *Wallet) Sign(msg string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(w.priv, []byte(msg)))
}
