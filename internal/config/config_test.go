package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if c.UAA.ClientID != "cf" {
		t.Fatalf("client_id default = %q, esperaba cf", c.UAA.ClientID)
	}
	if c.UAA.ClientSecret != "" {
		t.Fatalf("client_secret default = %q, esperaba vacío", c.UAA.ClientSecret)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", c.Server.Addr)
	}
	if c.Session.Store != "memory" {
		t.Fatalf("store = %q", c.Session.Store)
	}
	if c.SessionTTL() != time.Hour {
		t.Fatalf("ttl = %v", c.SessionTTL())
	}
	if c.RefreshMargin() != 5*time.Minute {
		t.Fatalf("margin = %v", c.RefreshMargin())
	}
	if c.UAATimeout() != 10*time.Second {
		t.Fatalf("uaa timeout = %v", c.UAATimeout())
	}
	// cookies Secure salvo que se apague explícito
	if !c.SecureCookies() {
		t.Fatal("SecureCookies default debe ser true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OAUTH_CLIENT_ID", "mi-cliente")
	t.Setenv("OAUTH_CLIENT_SECRET", "mi-secreto")
	t.Setenv("UAA_URL", "https://login.sys.example.com")
	t.Setenv("DIEGO_AUTH_SESSION_TTL", "30m")
	t.Setenv("COOKIE_SECURE", "false")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if c.UAA.ClientID != "mi-cliente" || c.UAA.ClientSecret != "mi-secreto" {
		t.Fatalf("client = %q/%q", c.UAA.ClientID, c.UAA.ClientSecret)
	}
	if c.UAA.URL != "https://login.sys.example.com" {
		t.Fatalf("uaa url = %q", c.UAA.URL)
	}
	if c.SessionTTL() != 30*time.Minute {
		t.Fatalf("ttl = %v", c.SessionTTL())
	}
	if c.SecureCookies() {
		t.Fatal("COOKIE_SECURE=false no se aplicó")
	}
}

func TestLoad_YAMLPlusEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
uaa:
  url: https://login.del-yaml.example.com
  client_id: del-yaml
session:
  ttl: 2h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	// el entorno pisa al YAML
	t.Setenv("OAUTH_CLIENT_ID", "del-env")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.UAA.URL != "https://login.del-yaml.example.com" {
		t.Fatalf("url = %q", c.UAA.URL)
	}
	if c.UAA.ClientID != "del-env" {
		t.Fatalf("client_id = %q, el env debe pisar al YAML", c.UAA.ClientID)
	}
	if c.SessionTTL() != 2*time.Hour {
		t.Fatalf("ttl = %v", c.SessionTTL())
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	if _, err := Load("/no/existe/config.yaml"); err != nil {
		t.Fatalf("un YAML ausente no debe ser error: %v", err)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("DIEGO_AUTH_SESSION_TTL", "una-hora")
	if _, err := Load(""); err == nil {
		t.Fatal("esperaba error por duración inválida")
	}
}
