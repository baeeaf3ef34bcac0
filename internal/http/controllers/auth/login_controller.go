package auth

import (
	"net/http"

	dto "github.com/markalston/diego-auth/internal/http/dto/auth"
	httperrors "github.com/markalston/diego-auth/internal/http/errors"
	"github.com/markalston/diego-auth/internal/http/helpers"
	"github.com/markalston/diego-auth/internal/observability/logger"
	"github.com/markalston/diego-auth/internal/uaa"
)

// LoginController maneja POST /auth/login.
type LoginController struct {
	service SessionService
	cookies helpers.CookieWriter
}

// Handle intercambia credenciales por una sesión y setea las cookies
// DIEGO_SESSION (HttpOnly) y DIEGO_CSRF (legible).
func (c *LoginController) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Handle"))

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("username y password son requeridos"))
		return
	}

	rec, err := c.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		c.handleError(w, err)
		return
	}

	c.cookies.SetSession(w, rec.SessionID)
	c.cookies.SetCSRF(w, rec.CSRFToken)

	helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
		Success:  true,
		Username: rec.Username,
		UserID:   rec.UserID,
	})
	log.Debug("login ok", logger.Username(rec.Username))
}

// handleError mapea errores del exchange a HTTP. Cualquier factor inválido
// produce la misma respuesta genérica.
func (c *LoginController) handleError(w http.ResponseWriter, err error) {
	switch {
	case uaa.IsInvalidGrant(err):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case uaa.IsUnavailable(err):
		httperrors.WriteError(w, httperrors.ErrUpstreamUnavailable)
	default:
		httperrors.WriteError(w, httperrors.ErrUpstreamProtocol)
	}
}
