// Package pipeline schedules HLS conversions.
//
// Dispatcher.RequestConversion is the single-asset entry point shared by the
// CLI and other collaborators: it validates eligibility, applies the
// needs-encoding gate, resets the asset to pending (clearing outputs when
// forced) and enqueues a job tagged with a fresh request id.
//
// Orchestrator.Run backfills an existing catalog in bounded batches. It never
// dispatches more than the limit and never dispatches an asset whose
// extension is outside the video allow-list.
package pipeline
