// diegoauth es un CLI mínimo para probar el servicio de sesiones:
// login/me/refresh/logout contra una instancia corriendo. Guarda las cookies
// de sesión en un archivo de estado para sobrevivir entre invocaciones.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type state struct {
	SessionCookie string `json:"session_cookie"`
	CSRFToken     string `json:"csrf_token"`
}

type client struct {
	BaseURL   string
	StatePath string
	HTTP      *http.Client
}

func (c *client) statePathOrDefault() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".diegoauth.json")
}

func (c *client) loadState() state {
	var s state
	b, err := os.ReadFile(c.statePathOrDefault())
	if err == nil {
		_ = json.Unmarshal(b, &s)
	}
	return s
}

func (c *client) saveState(s state) error {
	b, _ := json.MarshalIndent(s, "", "  ")
	return os.WriteFile(c.statePathOrDefault(), b, 0o600)
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s := c.loadState()
	if s.SessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: "DIEGO_SESSION", Value: s.SessionCookie})
	}
	if s.CSRFToken != "" {
		req.AddCookie(&http.Cookie{Name: "DIEGO_CSRF", Value: s.CSRFToken})
		req.Header.Set("X-CSRF-Token", s.CSRFToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	// capturar cookies nuevas (login) o borradas (logout)
	changed := false
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case "DIEGO_SESSION":
			s.SessionCookie = ck.Value
			changed = true
		case "DIEGO_CSRF":
			s.CSRFToken = ck.Value
			changed = true
		}
	}
	if changed {
		if err := c.saveState(s); err != nil {
			fmt.Fprintf(os.Stderr, "warn: no se pudo guardar estado: %v\n", err)
		}
	}

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	fmt.Printf("status=%d\n", status)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	c := &client{
		BaseURL: envOr("DIEGO_AUTH_URL", "http://localhost:8080"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}

	root := &cobra.Command{
		Use:   "diegoauth",
		Short: "CLI para el servicio de sesiones del Diego capacity analyzer",
	}
	root.PersistentFlags().StringVar(&c.BaseURL, "url", c.BaseURL, "URL base del servicio (env DIEGO_AUTH_URL)")
	root.PersistentFlags().StringVar(&c.StatePath, "state", "", "archivo de estado de cookies (default ~/.diegoauth.json)")

	login := &cobra.Command{
		Use:   "login <username>",
		Short: "Login con password grant (password por env DIEGO_AUTH_PASSWORD o prompt)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("DIEGO_AUTH_PASSWORD")
			if password == "" {
				fmt.Fprint(os.Stderr, "password: ")
				fmt.Fscanln(os.Stdin, &password)
			}
			body, _ := json.Marshal(map[string]string{"username": args[0], "password": password})
			status, b, err := c.do(http.MethodPost, "/auth/login", body)
			if err != nil {
				return err
			}
			c.print(status, b)
			return nil
		},
	}

	me := &cobra.Command{
		Use:   "me",
		Short: "Estado de autenticación actual",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, b, err := c.do(http.MethodGet, "/auth/me", nil)
			if err != nil {
				return err
			}
			c.print(status, b)
			return nil
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refresca el token de la sesión si hace falta",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, b, err := c.do(http.MethodPost, "/auth/refresh", nil)
			if err != nil {
				return err
			}
			c.print(status, b)
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Cierra la sesión",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, b, err := c.do(http.MethodPost, "/auth/logout", nil)
			if err != nil {
				return err
			}
			c.print(status, b)
			return nil
		},
	}

	root.AddCommand(login, me, refresh, logout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
