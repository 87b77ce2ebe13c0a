// Package services defines shared utilities consumed by the conversion
// pipeline components.
//
// Key responsibilities:
//   - Context helpers that stamp asset IDs, job IDs, worker names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (capability, ineligible asset, transcode, timeout) with
//     errors.Is.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform.
package services
