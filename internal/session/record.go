// Package session implementa el estado de sesión server-side del patrón BFF:
// los tokens de UAA viven acá, el browser sólo ve un session ID opaco.
package session

import (
	"errors"
	"time"
)

// ErrNotFound indica sesión desconocida o expirada. El caller debe tratarla
// como "deslogueado" y pedir re-autenticación.
var ErrNotFound = errors.New("session: not found")

// Record es una sesión autenticada.
//
// SessionID y CSRFToken son inmutables después de Create. AccessToken,
// RefreshToken y ExpiresAt sólo mutan vía Store.Update (refresh). Nadie debe
// mutar un Record obtenido de Get: los stores devuelven copias.
type Record struct {
	SessionID string `json:"session_id"`

	Username string `json:"username"`
	UserID   string `json:"user_id"`

	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`

	// CSRFToken se acuña una vez en el login y NUNCA rota en refresh:
	// el frontend ya lo tiene copiado en memoria.
	CSRFToken string `json:"csrf_token"`

	CreatedAt time.Time `json:"created_at"`

	// Extra es el punto de anclaje para metadata del provider.
	// Sólo el Service escribe acá.
	Extra map[string]string `json:"extra,omitempty"`
}

// TokenExpired reporta si el access token ya venció.
func (r *Record) TokenExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// NeedsRefresh reporta si el token vence dentro del margen de seguridad.
func (r *Record) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(r.ExpiresAt)
}
