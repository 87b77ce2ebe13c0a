// Package daemon coordinates the long-running coursecast worker process.
//
// It wires configuration, the SQLite database, the conversion worker pool,
// and the capability probe into a single lifecycle with flock-based locking
// to prevent multiple instances. When api.bind is set the daemon also serves
// a small read-only HTTP API: /healthz, Prometheus /metrics, the current
// capability snapshot, and the HLS status summary.
//
// Keep orchestration logic here: conversion steps live in transcode and
// scheduling lives in worker, while the daemon focuses on startup, shutdown,
// and status reporting.
package daemon
