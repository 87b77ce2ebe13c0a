// Package metrics provides Prometheus instrumentation for coursecast.
//
// Metrics are registered on the default registry through promauto and served
// by the worker daemon at /metrics. All names carry the "coursecast_" prefix.
package metrics
