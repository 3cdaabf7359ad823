package registry

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	memcache "github.com/dropDatabas3/hellobroker/internal/cache/memory"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/notify"
	"github.com/dropDatabas3/hellobroker/internal/security/secretbox"
	"github.com/dropDatabas3/hellobroker/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func TestResolveCredentials_Order(t *testing.T) {
	appEmail := &repository.EmailProvider{APIKey: "app", Sender: "app@x.test"}
	tenantEmail := &repository.EmailProvider{APIKey: "tenant", Sender: "t@x.test"}
	tenantSMS := &repository.SMSProvider{APIKey: "k", Username: "u", Endpoint: "https://sms.test"}

	cases := []struct {
		name     string
		client   *Client
		ch       repository.Channel
		wantTier string
		wantKey  string
	}{
		{
			name:     "application wins",
			client:   &Client{App: &repository.Application{Email: appEmail}, Tenant: &repository.Tenant{Email: tenantEmail}},
			ch:       repository.ChannelEmail,
			wantTier: "application",
			wantKey:  "app",
		},
		{
			name:     "incomplete app set falls back",
			client:   &Client{App: &repository.Application{Email: &repository.EmailProvider{APIKey: "app"}}, Tenant: &repository.Tenant{Email: tenantEmail}},
			ch:       repository.ChannelEmail,
			wantTier: "tenant",
			wantKey:  "tenant",
		},
		{
			name:     "per channel",
			client:   &Client{App: &repository.Application{Email: appEmail}, Tenant: &repository.Tenant{SMS: tenantSMS}},
			ch:       repository.ChannelPhone,
			wantTier: "tenant",
			wantKey:  "k",
		},
		{
			name:   "none",
			client: &Client{App: &repository.Application{}, Tenant: &repository.Tenant{}},
			ch:     repository.ChannelPhone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creds, tier, ok := ResolveCredentials(tc.client, tc.ch, DefaultTiers)
			require.Equal(t, tc.wantTier != "", ok)
			require.Equal(t, tc.wantTier, tier)
			switch {
			case !ok:
			case tc.ch == repository.ChannelEmail:
				require.Equal(t, tc.wantKey, creds.Email.APIKey)
				require.Nil(t, creds.SMS)
			default:
				require.Equal(t, tc.wantKey, creds.SMS.APIKey)
				require.Nil(t, creds.Email)
			}
		})
	}
}

func TestResolveCredentials_CustomTiers(t *testing.T) {
	platform := ProviderTier{
		Name: "platform",
		Credentials: func(*Client) notify.Credentials {
			return notify.Credentials{Email: &repository.EmailProvider{APIKey: "p", Sender: "p@x.test"}}
		},
	}
	_, tier, ok := ResolveCredentials(&Client{}, repository.ChannelEmail, append(DefaultTiers, platform))
	require.True(t, ok)
	require.Equal(t, "platform", tier)
}

type countingApps struct {
	repository.ApplicationRepository
	calls int
}

func (c *countingApps) GetByClientID(ctx context.Context, id string) (*repository.Application, error) {
	c.calls++
	return c.ApplicationRepository.GetByClientID(ctx, id)
}

func seed(t *testing.T) (*memory.DB, *repository.Application) {
	t.Helper()
	db := memory.New()
	ctx := context.Background()
	tn, err := db.Tenants().Create(ctx, repository.CreateTenantInput{
		Slug: "acme", Name: "Acme",
		Email: &repository.EmailProvider{APIKey: "secret-api-key", Sender: "no-reply@acme.test"},
	})
	require.NoError(t, err)
	app, err := db.Applications().Create(ctx, repository.CreateApplicationInput{
		TenantID: tn.ID, ClientID: "web", Name: "Web", RedirectURIs: []string{"https://app.test/cb"},
	})
	require.NoError(t, err)
	return db, app
}

func TestClient_CachedAndEncrypted(t *testing.T) {
	db, _ := seed(t)
	apps := &countingApps{ApplicationRepository: db.Applications()}
	c := memcache.New(time.Minute)
	box, err := secretbox.New(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)

	svc := NewService(Deps{Tenants: db.Tenants(), Applications: apps, Cache: c, Box: box})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cl, err := svc.Client(ctx, "web")
		require.NoError(t, err)
		require.Equal(t, "Acme", cl.Tenant.Name)
	}
	require.Equal(t, 1, apps.calls)

	raw, ok := c.Get(ctx, clientKey("web"))
	require.True(t, ok)
	require.NotContains(t, string(raw), "secret-api-key")

	svc.Invalidate(ctx, "web")
	_, err = svc.Client(ctx, "web")
	require.NoError(t, err)
	require.Equal(t, 2, apps.calls)
}

func TestClientAndTenantLookups(t *testing.T) {
	db, app := seed(t)
	svc := NewService(Deps{Tenants: db.Tenants(), Applications: db.Applications()})
	ctx := context.Background()

	_, err := svc.Client(ctx, "ghost")
	require.ErrorIs(t, err, ErrClientNotFound)

	bySlug, err := svc.Tenant(ctx, "acme")
	require.NoError(t, err)
	byID, err := svc.Tenant(ctx, app.TenantID)
	require.NoError(t, err)
	require.Equal(t, bySlug.ID, byID.ID)

	_, err = svc.Tenant(ctx, "nope")
	require.ErrorIs(t, err, ErrTenantNotFound)

	cl, err := svc.Client(ctx, "web")
	require.NoError(t, err)
	require.NoError(t, svc.ValidateRedirectURI(cl, "https://app.test/cb"))
	require.ErrorIs(t, svc.ValidateRedirectURI(cl, "https://app.test/cb/"), ErrInvalidRedirectURI)
	require.ErrorIs(t, svc.ValidateRedirectURI(cl, ""), ErrInvalidRedirectURI)
}
