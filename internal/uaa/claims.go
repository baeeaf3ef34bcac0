package uaa

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity son los atributos del principal que UAA incluye como claims del
// access token. Se extraen para guardarlos en la sesión; el backend no valida
// la firma porque el token viene de un exchange directo con UAA, no del cliente.
type Identity struct {
	UserID   string
	Username string
}

// IdentityFromToken parsea (sin verificar) los claims user_id/user_name del
// access token. Si el token no es un JWT o no trae claims, cae al username
// que ya conocemos del login.
func IdentityFromToken(accessToken, fallbackUsername string) Identity {
	id := Identity{Username: fallbackUsername, UserID: fallbackUsername}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return id
	}
	if v, ok := claims["user_id"].(string); ok && v != "" {
		id.UserID = v
	}
	if v, ok := claims["user_name"].(string); ok && v != "" {
		id.Username = v
	}
	return id
}
