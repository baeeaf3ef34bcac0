package auth

import (
	"net/http"

	dto "github.com/markalston/diego-auth/internal/http/dto/auth"
	httperrors "github.com/markalston/diego-auth/internal/http/errors"
	"github.com/markalston/diego-auth/internal/http/helpers"
	"github.com/markalston/diego-auth/internal/observability/logger"
	"github.com/markalston/diego-auth/internal/session"
	"github.com/markalston/diego-auth/internal/uaa"
)

// sessionIDFromCookie extrae el session ID de la cookie, o "".
func sessionIDFromCookie(r *http.Request) string {
	c, err := r.Cookie(helpers.SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// MeController maneja GET /auth/me: estado de autenticación, nunca falla.
type MeController struct {
	service SessionService
}

func (c *MeController) Handle(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFromCookie(r)
	if id == "" {
		helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{Authenticated: false})
		return
	}
	rec, err := c.service.Get(r.Context(), id)
	if err != nil {
		// sesión desconocida o expirada == no autenticado, no es error
		helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{Authenticated: false})
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{
		Authenticated: true,
		Username:      rec.Username,
		UserID:        rec.UserID,
	})
}

// RefreshController maneja POST /auth/refresh.
type RefreshController struct {
	service SessionService
}

func (c *RefreshController) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RefreshController.Handle"))

	id := sessionIDFromCookie(r)
	if id == "" {
		httperrors.WriteError(w, httperrors.ErrSessionExpired)
		return
	}

	_, refreshed, err := c.service.Refresh(ctx, id)
	if err != nil {
		switch {
		case err == session.ErrNotFound, uaa.IsInvalidGrant(err):
			// la sesión ya fue borrada por el service; a re-autenticar
			httperrors.WriteError(w, httperrors.ErrSessionExpired)
		case uaa.IsUnavailable(err):
			httperrors.WriteError(w, httperrors.ErrUpstreamUnavailable)
		default:
			log.Error("refresh error", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrUpstreamProtocol)
		}
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.RefreshResponse{Refreshed: refreshed})
}

// LogoutController maneja POST /auth/logout. Idempotente: siempre 200,
// aunque la sesión ya no exista.
type LogoutController struct {
	service SessionService
	cookies helpers.CookieWriter
}

func (c *LogoutController) Handle(w http.ResponseWriter, r *http.Request) {
	if id := sessionIDFromCookie(r); id != "" {
		_ = c.service.Logout(r.Context(), id)
	}
	c.cookies.Clear(w)
	helpers.WriteJSON(w, http.StatusOK, dto.LogoutResponse{Success: true})
}
