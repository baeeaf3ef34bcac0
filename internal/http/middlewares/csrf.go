package middlewares

import (
	"net/http"
	"strings"

	"github.com/markalston/diego-auth/internal/http/helpers"
	"github.com/markalston/diego-auth/internal/metrics"
	"github.com/markalston/diego-auth/internal/observability/logger"
	"github.com/markalston/diego-auth/internal/security/token"
)

// csrfRejectedMessage es el body fijo del rechazo. Nunca distingue "falta
// cookie" de "falta header" de "no coinciden": no le regalamos información
// a un atacante que está sondeando.
const csrfRejectedMessage = "CSRF token missing or invalid"

// exemption decide si un request queda exento de la validación CSRF.
type exemption struct {
	name  string
	match func(r *http.Request) bool
}

// Las exenciones se evalúan en orden fijo; el orden es parte del contrato
// y se testea por separado.
var exemptions = []exemption{
	// métodos de sólo lectura: no hay estado que forjar
	{"safe_method", func(r *http.Request) bool {
		return r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions
	}},
	// login: crea sesión nueva y debe funcionar aunque el browser arrastre
	// cookies viejas sin su cookie CSRF
	{"login_path", func(r *http.Request) bool {
		return strings.HasSuffix(r.URL.Path, "/auth/login")
	}},
	// auth por Bearer token: no viaja en cookies, no es forjable cross-site
	{"bearer_auth", func(r *http.Request) bool {
		return r.Header.Get("Authorization") != ""
	}},
	// sin cookie de sesión no hay nada que proteger
	{"no_session_cookie", func(r *http.Request) bool {
		c, err := r.Cookie(helpers.SessionCookieName)
		return err != nil || c.Value == ""
	}},
}

// WithCSRF valida el par double-submit (cookie DIEGO_CSRF vs header
// X-CSRF-Token) en requests que mutan estado.
//
// El guard es deliberadamente stateless: compara cookie contra header, nunca
// consulta el session store. Un request forjado cross-site no puede leer la
// cookie para reproducir el header, y con eso alcanza.
func WithCSRF() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, ex := range exemptions {
				if ex.match(r) {
					next.ServeHTTP(w, r)
					return
				}
			}

			log := logger.From(r.Context())

			csrfCookie, err := r.Cookie(helpers.CSRFCookieName)
			if err != nil || csrfCookie.Value == "" {
				log.Debug("csrf rejected: missing cookie", logger.Path(r.URL.Path))
				rejectCSRF(w)
				return
			}

			csrfHeader := r.Header.Get(helpers.CSRFHeaderName)
			if csrfHeader == "" {
				log.Debug("csrf rejected: missing header", logger.Path(r.URL.Path))
				rejectCSRF(w)
				return
			}

			if !token.Equal(csrfCookie.Value, csrfHeader) {
				log.Debug("csrf rejected: token mismatch", logger.Path(r.URL.Path))
				rejectCSRF(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectCSRF(w http.ResponseWriter) {
	metrics.CSRFRejectedTotal.Inc()
	helpers.WriteErrorJSON(w, http.StatusForbidden, csrfRejectedMessage)
}
