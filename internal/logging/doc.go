// Package logging assembles structured slog loggers and formatting helpers used
// across coursecast.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code automatically tags log
// lines with asset IDs, job IDs, and correlation IDs. The console handler
// lifts the component and asset into the line prefix so a conversion can be
// followed by eye.
package logging
