// Package app cablea config → store → token client → service → router.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markalston/diego-auth/internal/config"
	authctrl "github.com/markalston/diego-auth/internal/http/controllers/auth"
	healthctrl "github.com/markalston/diego-auth/internal/http/controllers/health"
	"github.com/markalston/diego-auth/internal/http/router"
	"github.com/markalston/diego-auth/internal/metrics"
	"github.com/markalston/diego-auth/internal/observability/logger"
	"github.com/markalston/diego-auth/internal/rate"
	"github.com/markalston/diego-auth/internal/security/secretbox"
	"github.com/markalston/diego-auth/internal/session"
	"github.com/markalston/diego-auth/internal/uaa"
)

// Version se sobreescribe en build con -ldflags.
var Version = "dev"

// App es el servicio armado y listo para servir.
type App struct {
	cfg     *config.Config
	handler http.Handler
	closers []func() error
}

// New construye la aplicación completa a partir de la config.
func New(cfg *config.Config) (*App, error) {
	if err := metrics.RegisterAuth(nil); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}

	store, err := a.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	client := uaa.New(uaa.Options{
		TokenURL:          cfg.UAA.URL,
		CFAPIURL:          cfg.UAA.CFAPIURL,
		ClientID:          cfg.UAA.ClientID,
		ClientSecret:      cfg.UAA.ClientSecret,
		SkipSSLValidation: cfg.UAA.SkipSSLValidation,
		Timeout:           cfg.UAATimeout(),
	})

	svc := session.NewService(store, client, cfg.RefreshMargin())

	a.handler = router.New(router.Deps{
		AuthControllers:    authctrl.NewControllers(svc, cfg.SecureCookies(), cfg.SessionTTL()),
		HealthController:   &healthctrl.Controller{Version: Version},
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		LoginLimiter:       a.buildLimiter(cfg),
	})
	return a, nil
}

// buildStore elige el backend del session store según config.
func (a *App) buildStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Store {
	case "redis":
		var box *secretbox.Box
		if cfg.Security.SessionMasterKey != "" {
			var err error
			if box, err = secretbox.New(cfg.Security.SessionMasterKey); err != nil {
				return nil, err
			}
		} else {
			logger.L().Warn("redis session store sin session_master_key: refresh tokens en claro")
		}
		st, err := session.NewRedisStore(session.RedisOptions{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			Prefix:   cfg.Session.Redis.Prefix,
			Box:      box,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	case "memory", "":
		st := session.NewMemoryStore(session.MemoryOptions{})
		a.closers = append(a.closers, func() error { st.Close(); return nil })
		return st, nil
	default:
		return nil, fmt.Errorf("app: session store desconocido %q", cfg.Session.Store)
	}
}

// buildLimiter arma el rate limiter de login: Redis si hay, memoria si no,
// nada si está deshabilitado.
func (a *App) buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if cfg.Session.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		return rate.NewRedisLimiter(rdb, cfg.Session.Redis.Prefix+":rl:", cfg.Rate.Login.Limit, cfg.LoginRateWindow())
	}
	return rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.LoginRateWindow())
}

// Handler expone el router (para tests y para Run).
func (a *App) Handler() http.Handler { return a.handler }

// Run sirve HTTP hasta que ctx se cancela, con shutdown graceful.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("listening", logger.String("addr", a.cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	for _, c := range a.closers {
		_ = c()
	}
	return err
}
