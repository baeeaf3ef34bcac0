package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth-related Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the session service and HTTP packages.

var (
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Intentos de login por resultado (success|invalid|unavailable|error)",
	}, []string{"result"})

	RefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_refreshes_total",
		Help: "Refresh de tokens contra UAA por resultado (success|invalid|unavailable|error)",
	}, []string{"result"})

	CSRFRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_csrf_rejected_total",
		Help: "Requests rechazados por el guard CSRF",
	})

	SessionsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auth_sessions_live",
		Help: "Sesiones vivas en el store",
	})

	UAAExchangeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_uaa_exchange_latency_ms",
		Help:    "Latencia del token exchange contra UAA en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"grant_type"})
)

// RegisterAuth registers the auth metrics on the given registry (or default if nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		LoginsTotal, RefreshesTotal, CSRFRejectedTotal, SessionsLive, UAAExchangeLatency,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
