// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe through a command.Runner, so the subprocess toggle and
// deadlines apply to source inspection the same way they apply to the
// transcoder. The conversion job uses the result to reject uploads that carry
// no video stream before spending a transcode on them.
package ffprobe
