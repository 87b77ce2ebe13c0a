// Package worker runs queued conversion jobs.
//
// A Pool starts a fixed number of goroutines. Each one claims the oldest
// queued job, runs the conversion while a heartbeat loop keeps the job alive,
// and records done, failed or skipped. Worker 0 also reclaims jobs whose
// heartbeat went stale, failing both the job and its processing asset so the
// state machine never holds an asset in processing without a live worker.
package worker
