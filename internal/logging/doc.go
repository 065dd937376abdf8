// Package logging provides structured logging for nutrid.
//
// Logger wraps Zap with:
//   - A Trace level (-2, below Debug)
//   - Stdout output plus an optional OpenTelemetry log bridge
//   - Context field injection (trace_id, request.id, user.id, tracking.date)
//   - Level-aware sampling (errors never sampled)
//
// Create a logger from config:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithUserID(ctx, "u1")
//	ctx = logging.WithDate(ctx, "2024-01-01")
//	logger.Info(ctx, "food added", zap.String("food", "Rice"))
//
// Tests use NewTestLogger, which records entries in memory through
// zaptest/observer.
//
// Logger is safe for concurrent use. Child loggers (With, Named) do not
// affect their parent.
package logging
