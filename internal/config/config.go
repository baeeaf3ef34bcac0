package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	// UAA es el identity provider contra el que se intercambian credenciales.
	UAA struct {
		// URL directa del token endpoint base. Si está vacía se descubre
		// desde CFAPIURL (/v3/info → links.login.href).
		URL               string `yaml:"url"`
		CFAPIURL          string `yaml:"cf_api_url"`
		SkipSSLValidation bool   `yaml:"skip_ssl_validation"` // sólo dev
		ClientID          string `yaml:"client_id"`
		ClientSecret      string `yaml:"client_secret"`
		Timeout           string `yaml:"timeout"`
	} `yaml:"uaa"`

	Session struct {
		// memory | redis
		Store string `yaml:"store"`
		TTL   string `yaml:"ttl"`
		// margen antes de expiresAt dentro del cual se refresca proactivamente
		RefreshMargin string `yaml:"refresh_margin"`
		// nil => true; sólo se apaga explícitamente (dev sin TLS)
		CookieSecure *bool `yaml:"cookie_secure"`
		Redis        struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Security struct {
		// base64(32 bytes); cifra refresh tokens en el store redis
		SessionMasterKey string `yaml:"session_master_key"`
	} `yaml:"security"`
}

// Load lee la configuración desde un YAML (opcional) y aplica overrides de
// entorno y defaults. Si path está vacío o el archivo no existe, la config
// sale solo de entorno + defaults (compatibilidad con deploys sin YAML).
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	c.applyEnv()

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.UAA.ClientID == "" {
		c.UAA.ClientID = "cf"
	}
	if c.UAA.Timeout == "" {
		c.UAA.Timeout = "10s"
	}
	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "1h"
	}
	if c.Session.RefreshMargin == "" {
		c.Session.RefreshMargin = "5m"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "diego"
	}

	// validate string durations
	for _, d := range []string{c.UAA.Timeout, c.Session.TTL, c.Session.RefreshMargin, c.Rate.Login.Window} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// applyEnv aplica los overrides de entorno enumerados.
// OAUTH_CLIENT_ID/OAUTH_CLIENT_SECRET conservan los nombres históricos del
// analyzer; el resto sigue el prefijo DIEGO_AUTH_.
func (c *Config) applyEnv() {
	setStr(&c.UAA.ClientID, "OAUTH_CLIENT_ID")
	setStr(&c.UAA.ClientSecret, "OAUTH_CLIENT_SECRET")
	setStr(&c.UAA.URL, "UAA_URL")
	setStr(&c.UAA.CFAPIURL, "CF_API_URL")
	setBool(&c.UAA.SkipSSLValidation, "CF_SKIP_SSL_VALIDATION")
	setStr(&c.Server.Addr, "DIEGO_AUTH_ADDR")
	setStr(&c.App.Env, "DIEGO_AUTH_ENV")
	setStr(&c.Log.Level, "DIEGO_AUTH_LOG_LEVEL")
	setStr(&c.Session.Store, "DIEGO_AUTH_SESSION_STORE")
	setStr(&c.Session.TTL, "DIEGO_AUTH_SESSION_TTL")
	setStr(&c.Session.Redis.Addr, "DIEGO_AUTH_REDIS_ADDR")
	setStr(&c.Security.SessionMasterKey, "SESSION_MASTER_KEY")
	if v, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Session.CookieSecure = &b
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		c.Server.CORSAllowedOrigins = out
	}
}

// Durations exponen los campos string ya validados por Load.

func (c *Config) UAATimeout() time.Duration { return mustDur(c.UAA.Timeout) }

// SecureCookies indica si las cookies llevan el flag Secure (default true).
func (c *Config) SecureCookies() bool {
	if c.Session.CookieSecure == nil {
		return true
	}
	return *c.Session.CookieSecure
}

func (c *Config) SessionTTL() time.Duration      { return mustDur(c.Session.TTL) }
func (c *Config) RefreshMargin() time.Duration   { return mustDur(c.Session.RefreshMargin) }
func (c *Config) LoginRateWindow() time.Duration { return mustDur(c.Rate.Login.Window) }

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func setStr(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
