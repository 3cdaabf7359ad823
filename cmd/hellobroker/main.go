package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/app"
	"github.com/dropDatabas3/hellobroker/internal/config"
	"github.com/dropDatabas3/hellobroker/internal/http/services/interaction"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cli struct {
	ConfigPath string
	EnvFile    string
	OutFormat  string // "json" | "text"
	Verbose    bool

	cfg *config.Config
}

func (c *cli) print(v any, text string) {
	if c.OutFormat == "json" {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	fmt.Println(text)
}

func main() {
	c := &cli{}
	root := &cobra.Command{
		Use:           "hellobroker",
		Short:         "Broker de autenticación multi-tenant (OTP, wallet Stellar, OIDC)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.EnvFile != "" {
				if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("dotenv %s: %w", c.EnvFile, err)
				}
			}
			cfg, err := config.Resolve(c.ConfigPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			lvl := cfg.Log.Level
			if c.Verbose {
				lvl = "debug"
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: lvl, ServiceName: "hellobroker"})
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml; sin archivo usa solo env)")
	root.PersistentFlags().StringVar(&c.EnvFile, "env-file", ".env", "ruta a .env (si existe, se carga)")
	root.PersistentFlags().StringVar(&c.OutFormat, "out", "text", "Formato de salida: json|text")
	root.PersistentFlags().BoolVarP(&c.Verbose, "verbose", "v", false, "log en nivel debug")

	root.AddCommand(
		serveCmd(c),
		migrateCmd(c),
		tenantCmd(c),
		appCmd(c),
		keysCmd(c),
		interactionsCmd(c),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd(c *cli) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, c.cfg, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				n, err := a.Store.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				logger.L().Info("migrations applied", logger.Count(n))
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "aplica migraciones antes de servir")
	return cmd
}

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL embebidas (solo postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.OpenStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Store.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			c.print(map[string]any{"applied": n}, fmt.Sprintf("migraciones aplicadas: %d", n))
			return nil
		},
	}
}

func keysCmd(c *cli) *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Claves de firma Ed25519"}

	var out string
	var rotate bool
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera (o rota) el keyring de firma",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = c.cfg.JWT.KeysFile
			}
			if out == "" {
				return errors.New("falta destino (--file o jwt.keys_file)")
			}
			next, err := jwtx.GenerateSigningKey()
			if err != nil {
				return err
			}

			var kr *jwtx.Keyring
			existing, err := jwtx.LoadKeyring(out)
			switch {
			case err == nil && rotate:
				existing.Rotate(next)
				kr = existing
			case err == nil:
				return fmt.Errorf("%s ya existe (usar --rotate)", out)
			case errors.Is(err, fs.ErrNotExist):
				kr = jwtx.NewKeyring(next)
			default:
				return err
			}
			if err := jwtx.SaveKeyring(out, kr); err != nil {
				return err
			}
			c.print(map[string]any{"kid": next.KID, "file": out, "keys": len(kr.Keys())},
				fmt.Sprintf("kid=%s file=%s", next.KID, out))
			return nil
		},
	}
	gen.Flags().StringVar(&out, "file", "", "archivo destino (default jwt.keys_file)")
	gen.Flags().BoolVar(&rotate, "rotate", false, "rota: la clave activa pasa a solo-verificación")
	keys.AddCommand(gen)
	return keys
}

func interactionsCmd(c *cli) *cobra.Command {
	ix := &cobra.Command{Use: "interactions", Short: "Mantenimiento de interacciones"}

	var grace time.Duration
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Borra interacciones expiradas",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.OpenStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := interaction.NewService(interaction.Deps{Repo: a.Store.Interactions})
			n, err := svc.Sweep(cmd.Context(), time.Now().Add(-grace))
			if err != nil {
				return err
			}
			c.print(map[string]any{"deleted": n}, fmt.Sprintf("interacciones borradas: %d", n))
			return nil
		},
	}
	sweep.Flags().DurationVar(&grace, "grace", 0, "solo borra las expiradas hace más de este tiempo")
	ix.AddCommand(sweep)
	return ix
}
