// Package metrics provides the observability hooks for build metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks and costs nothing
// unless a real implementation (PrometheusRecorder) is injected. The dev
// server exposes the Prometheus registry over /metrics when enabled.
package metrics
