package session

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/markalston/diego-auth/internal/metrics"
	"github.com/markalston/diego-auth/internal/observability/logger"
	"github.com/markalston/diego-auth/internal/security/token"
	"github.com/markalston/diego-auth/internal/uaa"
)

// csrfTokenBytes: 32 bytes => 256 bits, bien por encima del mínimo de 128.
const csrfTokenBytes = 32

// TokenExchanger es lo que el Service necesita del token client.
// *uaa.Client lo implementa; los tests inyectan un double.
type TokenExchanger interface {
	ExchangePassword(ctx context.Context, username, password string) (*uaa.TokenResponse, error)
	ExchangeRefresh(ctx context.Context, refreshToken string) (*uaa.TokenResponse, error)
}

// Service orquesta el token client y el store: crea sesiones en el login,
// refresca tokens antes de que venzan y expone el ciclo de vida a los
// handlers. El Service decide CUÁNDO refrescar; el store decide CÓMO se
// guarda y evicta.
type Service struct {
	store  Store
	uaa    TokenExchanger
	margin time.Duration

	// sf colapsa refreshes concurrentes de la misma sesión en un solo
	// exchange contra UAA: un refresh duplicado quemaría el refresh token
	// rotado y dejaría colgado al perdedor.
	sf singleflight.Group
}

// NewService crea el service. margin es el colchón antes de ExpiresAt dentro
// del cual se refresca proactivamente (<=0 => 5m).
func NewService(store Store, exchanger TokenExchanger, margin time.Duration) *Service {
	if margin <= 0 {
		margin = 5 * time.Minute
	}
	return &Service{store: store, uaa: exchanger, margin: margin}
}

// Login intercambia credenciales por tokens y crea la sesión.
// Anonymous → Authenticated. En fallo no queda ningún estado.
func (s *Service) Login(ctx context.Context, username, password string) (Record, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("session.Login"))

	tr, err := s.uaa.ExchangePassword(ctx, username, password)
	if err != nil {
		metrics.LoginsTotal.With(prometheus.Labels{"result": loginResult(err)}).Inc()
		log.Warn("login exchange failed", logger.Username(username), logger.Err(err))
		return Record{}, err
	}

	csrf, err := token.GenerateOpaque(csrfTokenBytes)
	if err != nil {
		metrics.LoginsTotal.With(prometheus.Labels{"result": "error"}).Inc()
		return Record{}, err
	}

	identity := uaa.IdentityFromToken(tr.AccessToken, username)
	now := time.Now()
	rec := Record{
		Username:     identity.Username,
		UserID:       identity.UserID,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn) * time.Second),
		CSRFToken:    csrf,
		CreatedAt:    now,
	}

	id, err := s.store.Create(ctx, rec)
	if err != nil {
		metrics.LoginsTotal.With(prometheus.Labels{"result": "error"}).Inc()
		return Record{}, err
	}
	rec.SessionID = id

	metrics.LoginsTotal.With(prometheus.Labels{"result": "success"}).Inc()
	log.Info("session created", logger.Username(rec.Username), logger.UserID(rec.UserID), logger.SessionID(id))
	return rec, nil
}

// Resolve devuelve el record listo para usar: si el token está dentro del
// margen de expiración lo refresca de forma transparente primero.
func (s *Service) Resolve(ctx context.Context, sessionID string) (Record, error) {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	if !rec.NeedsRefresh(time.Now(), s.margin) {
		return rec, nil
	}
	rec, _, err = s.Refresh(ctx, sessionID)
	return rec, err
}

// Refresh ejecuta el refresh grant y muta el record en su lugar: mismo
// sessionID, mismo CSRFToken, tokens nuevos. refreshed=false significa que el
// token seguía fresco (o que otro caller concurrente ya lo refrescó).
//
// Si UAA rechaza el refresh token la sesión se borra (Authenticated →
// Expired): rotación es invalidación inmediata, reintentar sería inútil.
func (s *Service) Refresh(ctx context.Context, sessionID string) (Record, bool, error) {
	type result struct {
		rec       Record
		refreshed bool
	}

	v, err, _ := s.sf.Do(sessionID, func() (any, error) {
		log := logger.From(ctx).With(logger.Layer("service"), logger.Op("session.Refresh"))

		// El exchange es trabajo compartido: si el caller que llegó primero
		// cancela su request, los que cuelgan del singleflight siguen
		// esperando el resultado. El timeout del token client lo acota.
		ctx := context.WithoutCancel(ctx)

		refreshed := false
		err := s.store.Update(ctx, sessionID, func(rec *Record) error {
			// double-check bajo el lock: el ganador de una carrera previa
			// pudo haber dejado el token fresco
			if !rec.NeedsRefresh(time.Now(), s.margin) {
				return nil
			}

			tr, err := s.uaa.ExchangeRefresh(ctx, rec.RefreshToken)
			if err != nil {
				return err
			}
			rec.AccessToken = tr.AccessToken
			if tr.RefreshToken != "" {
				// el provider puede rotar el refresh token
				rec.RefreshToken = tr.RefreshToken
			}
			rec.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
			refreshed = true
			return nil
		})
		if err != nil {
			if err != ErrNotFound {
				metrics.RefreshesTotal.With(prometheus.Labels{"result": loginResult(err)}).Inc()
				if uaa.IsUnavailable(err) {
					// timeout/red: no se escribió nada, el record sigue
					// consistente y el caller puede reintentar con backoff
					log.Warn("refresh unavailable, keeping session", logger.SessionID(sessionID), logger.Err(err))
				} else {
					// refresh token rechazado o respuesta ininteligible:
					// la sesión se borra, el caller debe re-autenticar
					log.Warn("refresh failed, dropping session", logger.SessionID(sessionID), logger.Err(err))
					_ = s.store.Delete(ctx, sessionID)
				}
			}
			return nil, err
		}

		rec, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if refreshed {
			metrics.RefreshesTotal.With(prometheus.Labels{"result": "success"}).Inc()
			log.Info("token refreshed", logger.SessionID(sessionID))
		}
		return result{rec: rec, refreshed: refreshed}, nil
	})
	if err != nil {
		return Record{}, false, err
	}
	res := v.(result)
	return res.rec, res.refreshed, nil
}

// Logout borra la sesión. Idempotente: un sessionID desconocido ya está
// deslogueado, no es error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	logger.From(ctx).Debug("session deleted", logger.Layer("service"), logger.SessionID(sessionID))
	return nil
}

// Get devuelve el record sin disparar refresh (estado puro, para /auth/me).
func (s *Service) Get(ctx context.Context, sessionID string) (Record, error) {
	return s.store.Get(ctx, sessionID)
}

// loginResult mapea un error de exchange al label de métrica.
func loginResult(err error) string {
	switch {
	case uaa.IsInvalidGrant(err):
		return "invalid"
	case uaa.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
