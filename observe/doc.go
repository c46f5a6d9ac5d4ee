// Package observe provides observability primitives for the sync runtime.
//
// It is a pure instrumentation library: a structured JSON logger, OpenTelemetry
// metrics and tracing scoped to an entity type and operation, and a request
// middleware the API client wraps every backend call in. Exporter setup lives
// in the exporters subpackage.
package observe
