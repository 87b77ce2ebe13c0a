// Package queue persists conversion jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// A job is queued by the dispatcher, claimed atomically by one worker, kept
// alive with heartbeats, and finished as done, failed or skipped. A partial
// unique index allows only one queued or running job per asset, so enqueueing
// the same asset twice returns the existing job instead of creating a second.
// Jobs whose heartbeat goes stale are reclaimed as failed.
//
// The queue is the only dispatch channel between the CLI and the worker pool;
// asset encoding state lives in the catalog package.
package queue
