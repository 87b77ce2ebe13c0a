// Package command runs external programs for the transcoding pipeline.
//
// Every subprocess the pipeline spawns goes through Runner, so the
// transcoder.allow_subprocess toggle is enforced in one place. A disabled
// runner fails with services.ErrCapabilityUnavailable; a run cut short by its
// context deadline fails with services.ErrTimeout.
package command
