// Package logger builds the structured loggers used across the service.
//
// Loggers are plain *slog.Logger values writing JSON. Two additions sit on top of
// log/slog:
//
//   - context extractors: ids stored with [WithUserID], [WithKeywordID] and
//     [WithJobID] are added to every record logged with that context
//   - optional Sentry forwarding of warnings and errors ([NewWithSentry])
//
// Usage:
//
//	log := logger.NewWithSentry(cfg.Sentry, logger.ParseLevel(cfg.LogLevel), logger.DefaultExtractors()...)
//
//	ctx = logger.WithKeywordID(ctx, kw.ID)
//	log.InfoContext(ctx, "recurring scan scheduled")
//	// {"level":"INFO","msg":"recurring scan scheduled","keyword_id":"kw-1"}
//
// Without a DSN, NewWithSentry logs to stdout only, so the same wiring works in
// development. Packages that accept a logger default to [NewNope].
package logger
