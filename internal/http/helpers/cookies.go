package helpers

import (
	"net/http"
	"time"
)

// Nombres de cookies del subsistema de sesiones.
const (
	// SessionCookieName lleva el session ID opaco. HttpOnly: el browser nunca
	// expone el valor a scripts.
	SessionCookieName = "DIEGO_SESSION"

	// CSRFCookieName lleva el CSRF token. Legible por scripts a propósito:
	// el frontend lo copia al header X-CSRF-Token (double-submit).
	CSRFCookieName = "DIEGO_CSRF"

	// CSRFHeaderName es el header requerido en requests protegidos.
	CSRFHeaderName = "X-CSRF-Token"
)

// CookieWriter fija los flags de seguridad de las cookies de sesión.
type CookieWriter struct {
	Secure bool
	TTL    time.Duration
}

// SetSession escribe la cookie HttpOnly con el session ID.
func (c CookieWriter) SetSession(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
	})
}

// SetCSRF escribe la cookie legible con el CSRF token.
func (c CookieWriter) SetCSRF(w http.ResponseWriter, csrfToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    csrfToken,
		HttpOnly: false,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
	})
}

// Clear borra ambas cookies (logout).
func (c CookieWriter) Clear(w http.ResponseWriter) {
	for _, name := range []string{SessionCookieName, CSRFCookieName} {
		httpOnly := name == SessionCookieName
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			HttpOnly: httpOnly,
			Secure:   c.Secure,
			SameSite: http.SameSiteStrictMode,
			Path:     "/",
			MaxAge:   -1,
		})
	}
}
