// Package health contiene el health check.
package health

import (
	"net/http"

	"github.com/markalston/diego-auth/internal/http/helpers"
)

// Controller maneja GET /healthz.
type Controller struct {
	Version string
}

func (c *Controller) Handle(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": c.Version,
	})
}
