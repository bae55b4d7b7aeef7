// Package logger provides a process-wide zap logger with request-scoped
// loggers carried in context.Context.
//
// Initialise it once from main:
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// In handlers and services, prefer the request-scoped logger:
//
//	log := logger.From(ctx)
//	log.Error("update user", logger.Op("update"), logger.UserID(id), logger.Err(err))
//
// "dev" writes coloured console output; "prod" writes JSON.
package logger
