package auth

// RefreshResponse es la respuesta de POST /auth/refresh.
type RefreshResponse struct {
	Refreshed bool `json:"refreshed"`
}

// LogoutResponse es la respuesta de POST /auth/logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// MeResponse es la respuesta de GET /auth/me.
type MeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}
