// Package auth contiene los controllers de autenticación.
//
// Los controllers traducen HTTP ↔ service: leen cookies y bodies, llaman al
// session service y escriben status/cookies. Toda la lógica de sesiones vive
// en internal/session.
package auth

import (
	"context"
	"time"

	"github.com/markalston/diego-auth/internal/http/helpers"
	"github.com/markalston/diego-auth/internal/session"
)

// SessionService es lo que los controllers necesitan del service.
type SessionService interface {
	Login(ctx context.Context, username, password string) (session.Record, error)
	Get(ctx context.Context, sessionID string) (session.Record, error)
	Refresh(ctx context.Context, sessionID string) (session.Record, bool, error)
	Logout(ctx context.Context, sessionID string) error
}

// Controllers agrupa los controllers del dominio auth.
type Controllers struct {
	Login   *LoginController
	Me      *MeController
	Refresh *RefreshController
	Logout  *LogoutController
}

// NewControllers crea el agregador con un CookieWriter compartido.
func NewControllers(svc SessionService, secure bool, sessionTTL time.Duration) *Controllers {
	cookies := helpers.CookieWriter{Secure: secure, TTL: sessionTTL}
	return &Controllers{
		Login:   &LoginController{service: svc, cookies: cookies},
		Me:      &MeController{service: svc},
		Refresh: &RefreshController{service: svc},
		Logout:  &LogoutController{service: svc, cookies: cookies},
	}
}
