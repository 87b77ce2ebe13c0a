// Package config loads, normalizes, and validates coursecast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COURSECAST_FFMPEG. The Config type centralizes every knob the worker and CLI
// need so database, upload and HLS storage locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
