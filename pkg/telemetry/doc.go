// Package telemetry provides structured logging, tracing, metrics, and
// event publishing for the StackForge engine.
//
// The package wraps zerolog for logging, OpenTelemetry for tracing, and
// Prometheus for metrics, all configured from a single Config. Components
// carry their telemetry through context.Context: install a Telemetry handle
// with WithContext and retrieve the logger anywhere with FromContext.
//
// The event publisher delivers resolution lifecycle events (started,
// node resolved, plan generated, config persisted, failed) to in-process
// subscribers, optionally buffered and batched.
package telemetry
