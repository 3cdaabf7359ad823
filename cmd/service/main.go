// Command service levanta el broker sin el resto del CLI (imagen de
// contenedor). Equivale a `hellobroker serve`.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dropDatabas3/hellobroker/internal/app"
	"github.com/dropDatabas3/hellobroker/internal/config"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/joho/godotenv"
)

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagMigrate    = flag.Bool("migrate", false, "aplica migraciones antes de servir")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfg, err := config.Resolve(*flagConfigPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "hellobroker"})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		logger.L().Fatal("wiring", logger.Err(err))
	}
	defer a.Close()

	if *flagMigrate {
		n, err := a.Store.Migrate(ctx)
		if err != nil {
			logger.L().Fatal("migrate", logger.Err(err))
		}
		logger.L().Info("migrations applied", logger.Count(n))
	}

	if err := a.Run(ctx); err != nil {
		logger.L().Error("http", logger.Err(err))
	}
}
