package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/hellobroker/internal/app"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	sectoken "github.com/dropDatabas3/hellobroker/internal/security/token"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// providerFlags credenciales opcionales de notificación (tenant o app).
type providerFlags struct {
	EmailKey, EmailSender                   string
	SMSKey, SMSUser, SMSSender, SMSEndpoint string
}

func (p *providerFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.EmailKey, "email-api-key", "", "API key del gateway de email")
	f.StringVar(&p.EmailSender, "email-sender", "", "remitente (From)")
	f.StringVar(&p.SMSKey, "sms-api-key", "", "API key del gateway SMS")
	f.StringVar(&p.SMSUser, "sms-username", "", "usuario del gateway SMS")
	f.StringVar(&p.SMSSender, "sms-sender-id", "", "sender id (opcional)")
	f.StringVar(&p.SMSEndpoint, "sms-endpoint", "", "URL del gateway SMS")
}

func (p *providerFlags) email() *repository.EmailProvider {
	if p.EmailKey == "" && p.EmailSender == "" {
		return nil
	}
	return &repository.EmailProvider{APIKey: p.EmailKey, Sender: p.EmailSender}
}

func (p *providerFlags) sms() *repository.SMSProvider {
	if p.SMSKey == "" && p.SMSUser == "" && p.SMSEndpoint == "" {
		return nil
	}
	return &repository.SMSProvider{APIKey: p.SMSKey, Username: p.SMSUser, SenderID: p.SMSSender, Endpoint: p.SMSEndpoint}
}

func tenantCmd(c *cli) *cobra.Command {
	tenant := &cobra.Command{Use: "tenant", Short: "Administración de tenants"}

	var slug, name string
	var prov providerFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Crea un tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(slug) == "" {
				return errors.New("--slug requerido")
			}
			if name == "" {
				name = slug
			}
			a, err := app.OpenStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.Store.Tenants.Create(cmd.Context(), repository.CreateTenantInput{
				Slug:  slug,
				Name:  name,
				Email: prov.email(),
				SMS:   prov.sms(),
			})
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("tenant %q ya existe", slug)
			}
			if err != nil {
				return err
			}
			c.print(map[string]any{"id": t.ID, "slug": t.Slug, "name": t.Name},
				fmt.Sprintf("tenant creado id=%s slug=%s", t.ID, t.Slug))
			return nil
		},
	}
	create.Flags().StringVar(&slug, "slug", "", "slug único del tenant")
	create.Flags().StringVar(&name, "name", "", "nombre visible (default: slug)")
	prov.bind(create)
	tenant.AddCommand(create)
	return tenant
}

func appCmd(c *cli) *cobra.Command {
	appc := &cobra.Command{Use: "app", Short: "Administración de aplicaciones (clientes OAuth)"}

	var (
		tenantRef, clientID, name, logo string
		redirects                       []string
		confidential                    bool
		prov                            providerFlags
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Registra una aplicación; con --confidential imprime el secret una sola vez",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantRef == "" || clientID == "" || len(redirects) == 0 {
				return errors.New("--tenant, --client-id y --redirect-uri son requeridos")
			}
			a, err := app.OpenStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.Store.Tenants.GetBySlug(cmd.Context(), tenantRef)
			if _, perr := uuid.Parse(tenantRef); perr == nil && errors.Is(err, repository.ErrNotFound) {
				t, err = a.Store.Tenants.GetByID(cmd.Context(), tenantRef)
			}
			if err != nil {
				return fmt.Errorf("tenant %q: %w", tenantRef, err)
			}

			var secret, secretHash string
			if confidential {
				if secret, err = sectoken.GenerateOpaqueToken(32); err != nil {
					return err
				}
				secretHash = sectoken.SHA256Base64URL(secret)
			}
			if name == "" {
				name = clientID
			}
			ap, err := a.Store.Applications.Create(cmd.Context(), repository.CreateApplicationInput{
				TenantID:         t.ID,
				ClientID:         clientID,
				Name:             name,
				LogoURL:          logo,
				ClientSecretHash: secretHash,
				RedirectURIs:     redirects,
				Email:            prov.email(),
				SMS:              prov.sms(),
			})
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("client_id %q ya existe", clientID)
			}
			if err != nil {
				return err
			}

			out := map[string]any{"id": ap.ID, "client_id": ap.ClientID, "tenant_id": t.ID}
			text := fmt.Sprintf("app creada client_id=%s tenant=%s", ap.ClientID, t.Slug)
			if secret != "" {
				out["client_secret"] = secret
				text += "\nclient_secret=" + secret + " (no se vuelve a mostrar)"
			}
			c.print(out, text)
			return nil
		},
	}
	f := create.Flags()
	f.StringVar(&tenantRef, "tenant", "", "slug o id del tenant")
	f.StringVar(&clientID, "client-id", "", "client_id público")
	f.StringVar(&name, "name", "", "nombre visible en la pantalla de login")
	f.StringVar(&logo, "logo-url", "", "logo para la pantalla de login")
	f.StringArrayVar(&redirects, "redirect-uri", nil, "redirect_uri permitida (repetible)")
	f.BoolVar(&confidential, "confidential", false, "genera client_secret")
	prov.bind(create)
	appc.AddCommand(create)
	return appc
}
