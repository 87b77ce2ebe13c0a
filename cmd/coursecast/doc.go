// Command coursecast is the operator CLI and worker daemon for converting
// uploaded lecture videos into HLS streams.
//
// Diagnostic commands (hls capability, hls summary, requirements) read state
// and report on the host. Scheduling commands (hls convert, hls encode) move
// assets to pending and enqueue conversion jobs in the SQLite queue. The
// worker command drains that queue until interrupted.
package main
