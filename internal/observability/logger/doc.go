// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada llamada de descubrimiento lleva su propio logger
//     "scoped" (request_id, role) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON, "test" descarta todo.
//   - Levels: debug, info, warn, error (configurable via BROKERDISCO_LOG_LEVEL).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,      // "dev" | "prod" | "test"
//	    Level: cfg.App.LogLevel, // "debug", "info", "warn", "error"
//	    Role:  "client",
//	})
//	defer logger.Sync()
//
// En el motor de descubrimiento:
//
//	log := logger.From(ctx)
//	log.Info("candidate answered", logger.Candidate(c.String()), logger.TransportKind(k.String()))
package logger
