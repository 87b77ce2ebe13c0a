// Package transcode runs the conversion job for a single video asset.
//
// Converter.Convert claims the asset (pending to processing), checks that it
// is still eligible, inspects the upload with ffprobe when available, runs the
// transcoder under transcoder.timeout and verifies the playlist. The outcome
// is written back to the catalog: completed with the manifest path relative to
// paths.storage_dir, or failed with a readable message. Output for asset N
// lives in <storage_dir>/hls/N/.
//
// There are no automatic retries; operators rerun failed assets with force.
package transcode
