// Package capability decides whether the HLS transcoder can run on this host.
//
// Probe.Check combines three facts: subprocess execution is enabled, the
// transcoder binary resolves (configured path, PATH, then known install
// locations) and it answers "-version". Results are cached under a fixed key
// for capability.cache_ttl through an injectable Cache; StoreCache shares the
// snapshot through SQLite across CLI invocations and the worker daemon.
//
// Check never returns an error: an unusable host is reported as data in the
// Snapshot's MissingRequirements.
package capability
