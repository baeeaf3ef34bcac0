// Package uaa implements the OAuth 2.0 resource-owner-password and
// refresh-token grants against a Cloud Foundry UAA token endpoint.
// The client is stateless: it translates one credential exchange into one
// HTTP round-trip and knows nothing about sessions.
package uaa

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/markalston/diego-auth/internal/metrics"
)

const (
	grantPassword = "password"
	grantRefresh  = "refresh_token"

	// discovered login URLs rarely change; re-discover hourly
	discoveryTTL = time.Hour
	discoveryKey = "uaa_url"
)

// Options configura el Client. ClientID/ClientSecret vienen de config
// (OAUTH_CLIENT_ID/OAUTH_CLIENT_SECRET), nunca hardcodeados acá.
type Options struct {
	// TokenURL base del UAA (sin /oauth/token). Si está vacío se descubre
	// desde CFAPIURL via /v3/info.
	TokenURL          string
	CFAPIURL          string
	ClientID          string
	ClientSecret      string
	SkipSSLValidation bool
	Timeout           time.Duration
}

// Client is the UAA token client.
type Client struct {
	opts      Options
	http      *http.Client
	discovery *gocache.Cache
}

// TokenResponse is the OAuth token response from UAA.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// New creates a UAA client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 || opts.Timeout > 10*time.Second {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		opts: opts,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.SkipSSLValidation},
			},
		},
		discovery: gocache.New(discoveryTTL, 10*time.Minute),
	}
}

// ExchangePassword performs the resource-owner-password grant.
func (c *Client) ExchangePassword(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", grantPassword)
	form.Set("username", username)
	form.Set("password", password)
	return c.exchange(ctx, "password_grant", grantPassword, form)
}

// ExchangeRefresh performs the refresh-token grant.
func (c *Client) ExchangeRefresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", grantRefresh)
	form.Set("refresh_token", refreshToken)
	return c.exchange(ctx, "refresh_grant", grantRefresh, form)
}

func (c *Client) exchange(ctx context.Context, op, grant string, form url.Values) (*TokenResponse, error) {
	base, err := c.tokenBaseURL(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Kind: KindProtocol, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	// El client se autentica a sí mismo con Basic, independiente de las
	// credenciales del usuario que van en el form.
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UAAExchangeLatency.With(prometheus.Labels{"grant_type": grant}).
		Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, &AuthError{Kind: KindUnavailable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// sigue abajo
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &AuthError{Kind: KindInvalidGrant, Op: op,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	case resp.StatusCode >= 500:
		return nil, &AuthError{Kind: KindUnavailable, Op: op,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return nil, &AuthError{Kind: KindProtocol, Op: op,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &AuthError{Kind: KindProtocol, Op: op, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{Kind: KindProtocol, Op: op, Err: fmt.Errorf("no access_token in response")}
	}
	return &tr, nil
}

// tokenBaseURL resuelve la URL base del UAA. Con TokenURL configurada la usa
// directo; si no, la descubre desde la CF API y cachea el resultado.
func (c *Client) tokenBaseURL(ctx context.Context) (string, error) {
	if c.opts.TokenURL != "" {
		return strings.TrimRight(c.opts.TokenURL, "/"), nil
	}
	if v, ok := c.discovery.Get(discoveryKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	u, err := c.discoverLoginURL(ctx)
	if err != nil {
		return "", err
	}
	c.discovery.Set(discoveryKey, u, gocache.DefaultExpiration)
	return u, nil
}

// discoverLoginURL obtiene links.login.href de /v3/info de la CF API.
func (c *Client) discoverLoginURL(ctx context.Context) (string, error) {
	if c.opts.CFAPIURL == "" {
		return "", &AuthError{Kind: KindProtocol, Op: "discovery",
			Err: fmt.Errorf("ni uaa.url ni uaa.cf_api_url configuradas")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.opts.CFAPIURL, "/")+"/v3/info", nil)
	if err != nil {
		return "", &AuthError{Kind: KindProtocol, Op: "discovery", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &AuthError{Kind: KindUnavailable, Op: "discovery", Err: err}
	}
	defer resp.Body.Close()

	var info struct {
		Links struct {
			Login struct {
				Href string `json:"href"`
			} `json:"login"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", &AuthError{Kind: KindProtocol, Op: "discovery", Err: fmt.Errorf("decode /v3/info: %w", err)}
	}

	u := strings.TrimRight(info.Links.Login.Href, "/")
	if u == "" {
		// convención CF: api.<dominio> → login.<dominio>
		u = strings.Replace(strings.TrimRight(c.opts.CFAPIURL, "/"), "://api.", "://login.", 1)
	}
	return u, nil
}
