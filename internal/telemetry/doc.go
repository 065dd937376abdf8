// Package telemetry sets up OpenTelemetry tracing and metrics for nutrid.
//
// New installs global tracer and meter providers that export over OTLP
// (gRPC by default, HTTP/protobuf optionally) and a W3C trace context
// propagator. When telemetry is disabled the globals stay no-op.
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporter setup failures do not stop the server: the instance is marked
// degraded and Health reports it.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
