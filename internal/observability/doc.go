// Package observability provides structured logging, metrics, and tracing
// for the auth service.
//
// This package implements:
//   - zap loggers with request id propagation
//   - Prometheus counters for token issuance, rotation and rate limiting
//   - OpenTelemetry tracing with an OTLP gRPC exporter
package observability
