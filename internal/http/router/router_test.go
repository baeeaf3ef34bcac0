package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authctrl "github.com/markalston/diego-auth/internal/http/controllers/auth"
	healthctrl "github.com/markalston/diego-auth/internal/http/controllers/health"
	"github.com/markalston/diego-auth/internal/http/helpers"
	"github.com/markalston/diego-auth/internal/http/router"
	"github.com/markalston/diego-auth/internal/session"
	"github.com/markalston/diego-auth/internal/uaa"
)

// fixedExchanger acepta admin/secret y refresca sin condiciones.
type fixedExchanger struct{}

func (fixedExchanger) ExchangePassword(_ context.Context, username, password string) (*uaa.TokenResponse, error) {
	if username != "admin" || password != "secret" {
		return nil, &uaa.AuthError{Kind: uaa.KindInvalidGrant, Op: "password_grant", Err: errors.New("bad credentials")}
	}
	return &uaa.TokenResponse{AccessToken: "access-0", RefreshToken: "refresh-0", ExpiresIn: 120}, nil
}

func (fixedExchanger) ExchangeRefresh(_ context.Context, _ string) (*uaa.TokenResponse, error) {
	return &uaa.TokenResponse{AccessToken: "access-1", ExpiresIn: 3600}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := session.NewMemoryStore(session.MemoryOptions{SweepEvery: time.Hour})
	t.Cleanup(store.Close)
	svc := session.NewService(store, fixedExchanger{}, 5*time.Minute)

	h := router.New(router.Deps{
		AuthControllers:  authctrl.NewControllers(svc, false, time.Hour),
		HealthController: &healthctrl.Controller{Version: "test"},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doLogin(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginFlow_SetsCookies(t *testing.T) {
	srv := newTestServer(t)

	resp := doLogin(t, srv, `{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success  bool   `json:"success"`
		Username string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, "admin", body.Username)

	sess := cookieByName(resp, helpers.SessionCookieName)
	require.NotNil(t, sess, "falta la cookie de sesión")
	require.True(t, sess.HttpOnly, "la cookie de sesión debe ser HttpOnly")
	require.NotEmpty(t, sess.Value)

	csrf := cookieByName(resp, helpers.CSRFCookieName)
	require.NotNil(t, csrf, "falta la cookie CSRF")
	require.False(t, csrf.HttpOnly, "la cookie CSRF debe ser legible por el frontend")
	require.GreaterOrEqual(t, len(csrf.Value), 22, "CSRF token con muy poca entropía")
}

func TestLoginFlow_BadCredentials(t *testing.T) {
	srv := newTestServer(t)

	resp := doLogin(t, srv, `{"username":"admin","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, resp.Cookies(), "un login fallido no debe setear cookies")

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	// código genérico: no filtra si el usuario existe o cuál factor falló
	require.Equal(t, "INVALID_CREDENTIALS", body.Code)
}

func TestLoginFlow_MissingFields(t *testing.T) {
	srv := newTestServer(t)
	resp := doLogin(t, srv, `{"username":"admin"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMeFlow(t *testing.T) {
	srv := newTestServer(t)

	login := doLogin(t, srv, `{"username":"admin","password":"secret"}`)
	sess := cookieByName(login, helpers.SessionCookieName)
	require.NotNil(t, sess)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	req.AddCookie(sess)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Authenticated)
	require.Equal(t, "admin", body.Username)
}

func TestMeFlow_NoSession(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.False(t, body.Authenticated)
}

func TestRefreshFlow(t *testing.T) {
	srv := newTestServer(t)

	login := doLogin(t, srv, `{"username":"admin","password":"secret"}`)
	sess := cookieByName(login, helpers.SessionCookieName)
	csrf := cookieByName(login, helpers.CSRFCookieName)
	require.NotNil(t, sess)
	require.NotNil(t, csrf)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	req.AddCookie(sess)
	req.AddCookie(csrf)
	req.Header.Set(helpers.CSRFHeaderName, csrf.Value)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Refreshed bool `json:"refreshed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Refreshed)
}

func TestRefreshFlow_CSRFGuardBlocks(t *testing.T) {
	srv := newTestServer(t)

	login := doLogin(t, srv, `{"username":"admin","password":"secret"}`)
	sess := cookieByName(login, helpers.SessionCookieName)
	csrf := cookieByName(login, helpers.CSRFCookieName)

	// con sesión pero sin header CSRF: 403 antes de llegar al handler
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	req.AddCookie(sess)
	req.AddCookie(csrf)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "CSRF token missing or invalid", body["error"])
}

func TestRefreshFlow_NoSessionCookie(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/auth/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutFlow_Idempotent(t *testing.T) {
	srv := newTestServer(t)

	login := doLogin(t, srv, `{"username":"admin","password":"secret"}`)
	sess := cookieByName(login, helpers.SessionCookieName)
	csrf := cookieByName(login, helpers.CSRFCookieName)

	logout := func() *http.Response {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/logout", nil)
		req.AddCookie(sess)
		req.AddCookie(csrf)
		req.Header.Set(helpers.CSRFHeaderName, csrf.Value)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	first := logout()
	defer first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	// las cookies se borran con MaxAge<0
	cleared := cookieByName(first, helpers.SessionCookieName)
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)

	// segundo logout con la misma cookie: también 200
	second := logout()
	defer second.Body.Close()
	require.Equal(t, http.StatusOK, second.StatusCode)

	// la sesión ya no existe
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	req.AddCookie(sess)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.False(t, body.Authenticated)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
