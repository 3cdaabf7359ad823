// Package app arma el broker completo (store, cache, keys, services,
// router y server) a partir de la config. Lo usan los comandos del CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/cache"
	memcache "github.com/dropDatabas3/hellobroker/internal/cache/memory"
	rediscache "github.com/dropDatabas3/hellobroker/internal/cache/redis"
	"github.com/dropDatabas3/hellobroker/internal/config"
	httpx "github.com/dropDatabas3/hellobroker/internal/http"
	"github.com/dropDatabas3/hellobroker/internal/http/controllers/health"
	"github.com/dropDatabas3/hellobroker/internal/http/router"
	"github.com/dropDatabas3/hellobroker/internal/http/services"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/notify"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/dropDatabas3/hellobroker/internal/rate"
	"github.com/dropDatabas3/hellobroker/internal/security/password"
	"github.com/dropDatabas3/hellobroker/internal/security/secretbox"
	"github.com/dropDatabas3/hellobroker/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options ajusta el armado. El zero value sirve para producción.
type Options struct {
	// Registry para /metrics; nil usa el default de prometheus.
	Registry prometheus.Registerer
	// Keys pisa jwt.keys_file (tests).
	Keys *jwtx.Keyring
	// Email pisa el gateway SMTP (tests, dev sin relay).
	Email notify.EmailGateway
}

// App es el broker cableado.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Redis    *rdb.Client // nil si nada usa redis
	Cache    cache.Cache
	Issuer   *jwtx.Issuer
	Services services.Services
	Handler  http.Handler

	box *secretbox.Box
}

// OpenStore abre solo redis y el store, para comandos que no sirven HTTP.
func OpenStore(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	if cfg.Cache.Kind == "redis" || cfg.Interactions.Backend == "redis" {
		a.Redis = rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
	}

	box, err := openSecretBox(cfg)
	if err != nil {
		return err
	}
	a.box = box

	a.Store, err = store.Open(ctx, store.Options{
		Driver:              cfg.Storage.Driver,
		DSN:                 cfg.Storage.DSN,
		MaxConns:            cfg.Storage.Postgres.MaxOpenConns,
		ConnMaxLifetime:     config.Dur(cfg.Storage.Postgres.ConnMaxLifetime, 0),
		SecretBox:           box,
		InteractionsBackend: cfg.Interactions.Backend,
		Redis:               a.Redis,
		RedisPrefix:         cfg.Cache.Redis.Prefix,
	})
	return err
}

// New arma todo. Ante error libera lo que ya abrió.
func New(ctx context.Context, cfg *config.Config, opts Options) (a *App, err error) {
	log := logger.L().With(logger.Component("app"))
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if err = a.openStore(ctx); err != nil {
		return a, err
	}

	cacheTTL := config.Dur(cfg.Cache.Memory.DefaultTTL, 0)
	if cfg.Cache.Kind == "redis" {
		a.Cache = rediscache.New(a.Redis, cfg.Cache.Redis.Prefix+"cache:")
	} else {
		a.Cache = memcache.New(cacheTTL)
	}

	keys := opts.Keys
	if keys == nil {
		if keys, err = loadKeys(cfg.JWT.KeysFile, log); err != nil {
			return a, err
		}
	}
	a.Issuer = jwtx.NewIssuer(cfg.JWT.Issuer, keys)
	a.Issuer.AccessTTL = config.Dur(cfg.JWT.AccessTTL, a.Issuer.AccessTTL)
	a.Issuer.RefreshTTL = config.Dur(cfg.JWT.RefreshTTL, a.Issuer.RefreshTTL)

	email := opts.Email
	if email == nil {
		if email, err = emailGateway(cfg, log); err != nil {
			return a, err
		}
	}

	pp := cfg.Security.PasswordPolicy
	a.Services = services.New(services.Deps{
		Store:    a.Store,
		Issuer:   a.Issuer,
		Cache:    a.Cache,
		Box:      a.box,
		CacheTTL: cacheTTL,
		Notifier: &notify.Dispatcher{
			Email: email,
			SMS:   notify.NewHTTPSMSGateway(config.Dur(cfg.SMS.Timeout, 10*time.Second)),
		},
		LoginURL: cfg.LoginUI.BaseURL,
		Policy: password.Policy{
			MinLength:     pp.MinLength,
			RequireUpper:  pp.RequireUpper,
			RequireLower:  pp.RequireLower,
			RequireDigit:  pp.RequireDigit,
			RequireSymbol: pp.RequireSymbol,
		},
	})

	mc := httpx.MetricsConfig{Registry: opts.Registry}
	if a.Store.Pool() != nil {
		mc.Pool = a.Store.Pool
	}
	metricsHandler, err := httpx.RegisterMetrics(mc)
	if err != nil {
		return a, fmt.Errorf("metrics: %w", err)
	}

	checks := map[string]health.Pinger{"store": a.Store}
	if cfg.Cache.Kind == "redis" {
		checks["cache"] = a.Cache
	}
	a.Handler = router.New(router.Deps{
		Services: a.Services,
		Issuer:   a.Issuer,
		Checks:   checks,
		Metrics:  metricsHandler,
		Limits:   a.limits(),

		RequestTimeout: config.Dur(cfg.Server.RequestTimeout, 0),
	})

	log.Info("app wired",
		logger.String("env", cfg.App.Env),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("rate", cfg.Rate.Enabled))
	return a, nil
}

// limits arma un limiter por grupo; con rate.enabled=false todos quedan nil.
func (a *App) limits() router.Limits {
	cfg := a.Config
	if !cfg.Rate.Enabled {
		return router.Limits{}
	}
	var multi rate.MultiLimiter
	if a.Redis != nil && cfg.Cache.Kind == "redis" {
		multi = rate.NewMultiRedisLimiter(a.Redis, cfg.Cache.Redis.Prefix+"rl:")
	} else {
		multi = rate.NewMultiMemoryLimiter()
	}
	fixed := func(l config.Limit) rate.Limiter {
		return rate.Fixed{Multi: multi, Limit: l.Limit, Window: cfg.WindowFor(l)}
	}
	return router.Limits{
		Login:  fixed(cfg.Rate.Login),
		OTP:    fixed(cfg.Rate.OTP),
		Wallet: fixed(cfg.Rate.Wallet),
		Token:  fixed(cfg.Rate.Token),
	}
}

// Server devuelve el http.Server listo para ListenAndServe.
func (a *App) Server() *http.Server {
	return httpx.NewServer(a.Config.Server.Addr, a.Handler)
}

// Run sirve hasta que ctx se cancele y después hace shutdown con gracia.
func (a *App) Run(ctx context.Context) error {
	srv := a.Server()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.L().Info("service up", logger.String("addr", srv.Addr), logger.String("issuer", a.Issuer.Iss))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shCtx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

func openSecretBox(cfg *config.Config) (*secretbox.Box, error) {
	key := strings.TrimSpace(cfg.Security.SecretBoxMasterKey)
	if key == "" {
		if cfg.App.Env == "prod" {
			return nil, errors.New("SECRETBOX_MASTER_KEY faltante (base64 de 32 bytes)")
		}
		return nil, nil
	}
	box, err := secretbox.New(key)
	if err != nil {
		return nil, fmt.Errorf("SECRETBOX_MASTER_KEY inválida: %w", err)
	}
	return box, nil
}

// loadKeys lee el keyring de path. Si el archivo no existe lo genera;
// sin path usa una clave efímera (solo dev: los tokens no sobreviven reinicios).
func loadKeys(path string, log *zap.Logger) (*jwtx.Keyring, error) {
	if path == "" {
		log.Warn("jwt.keys_file vacío, usando clave efímera")
		k, err := jwtx.GenerateSigningKey()
		if err != nil {
			return nil, err
		}
		return jwtx.NewKeyring(k), nil
	}
	kr, err := jwtx.LoadKeyring(path)
	if err == nil {
		return kr, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("jwt keys: %w", err)
	}
	k, err := jwtx.GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	kr = jwtx.NewKeyring(k)
	if err := jwtx.SaveKeyring(path, kr); err != nil {
		return nil, fmt.Errorf("jwt keys: %w", err)
	}
	log.Info("keyring generado", logger.String("path", path), logger.String("kid", k.KID))
	return kr, nil
}

// emailGateway usa el relay SMTP; sin host en dev los códigos solo se loguean.
func emailGateway(cfg *config.Config, log *zap.Logger) (notify.EmailGateway, error) {
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		if cfg.App.Env == "prod" {
			return nil, errors.New("smtp.host requerido en prod")
		}
		log.Warn("smtp.host vacío, los emails se escriben en el log")
		return notify.LogGateway{}, nil
	}
	g := notify.NewSMTPGateway(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.TLS)
	g.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
	return g, nil
}
