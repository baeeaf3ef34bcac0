// Package logger provee un logger zap singleton para todo el servicio.
//
// Uso típico:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Op("SessionService.Refresh"))
//	log.Info("token refreshed", logger.SessionID(id))
//
// Los middlewares HTTP inyectan un logger "scoped" (con request_id) en el
// contexto vía ToContext; From(ctx) lo recupera o cae al singleton.
package logger
