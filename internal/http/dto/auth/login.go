// Package auth contiene los DTOs de los endpoints de autenticación.
package auth

// LoginRequest es el body de POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse es la respuesta del login. Nunca incluye tokens: viven
// server-side, el browser sólo recibe cookies.
type LoginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}
