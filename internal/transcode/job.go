package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"coursecast/internal/catalog"
	"coursecast/internal/command"
	"coursecast/internal/config"
	"coursecast/internal/deps"
	"coursecast/internal/logging"
	"coursecast/internal/media/ffprobe"
	"coursecast/internal/metrics"
	"coursecast/internal/services"
)

const (
	// ManifestName is the playlist written for every converted asset.
	ManifestName = "playlist.m3u8"
	// SegmentPattern names the media segments next to the playlist.
	SegmentPattern = "segment_%05d.ts"
)

// Outcome is the result of one conversion attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped means the asset was not pending when the job started, so
	// nothing was touched.
	OutcomeSkipped Outcome = "skipped"
)

// Result describes a finished conversion attempt.
type Result struct {
	AssetID      int64
	Outcome      Outcome
	ManifestPath string
	Message      string
	Duration     time.Duration
}

// Converter runs conversion jobs for single assets.
type Converter struct {
	cfg    *config.Config
	assets *catalog.Store
	runner command.Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewConverter builds a converter. A nil runner executes through os/exec
// honoring the subprocess toggle.
func NewConverter(cfg *config.Config, assets *catalog.Store, runner command.Runner, logger *slog.Logger) *Converter {
	if runner == nil {
		runner = command.NewRunner(cfg)
	}
	return &Converter{
		cfg:    cfg,
		assets: assets,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "transcode"),
		now:    time.Now,
	}
}

// Convert claims assetID (pending to processing), transcodes its source into
// an HLS playlist and records completed or failed. A returned error means the
// asset ended failed or its state could not be recorded; a lost claim yields
// OutcomeSkipped with a nil error.
func (c *Converter) Convert(ctx context.Context, assetID int64) (Result, error) {
	ctx = services.WithAssetID(ctx, assetID)
	logger := logging.WithContext(ctx, c.logger)
	started := c.now()
	result := Result{AssetID: assetID}

	claimed, err := c.assets.ClaimProcessing(ctx, assetID)
	if err != nil {
		return result, err
	}
	if !claimed {
		result.Outcome = OutcomeSkipped
		result.Message = "asset is not pending"
		logger.Info("conversion skipped",
			logging.String(logging.FieldEventType, "conversion_skipped"),
			logging.String("reason", result.Message),
		)
		metrics.ConversionsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		return result, nil
	}

	metrics.ConversionsInFlight.Inc()
	defer metrics.ConversionsInFlight.Dec()

	logger.Info("conversion started", logging.String(logging.FieldEventType, "conversion_started"))
	manifest, convErr := c.run(ctx, assetID, logger)
	result.Duration = c.now().Sub(started)

	if convErr == nil {
		if err := c.assets.MarkCompleted(ctx, assetID, manifest, c.now()); err != nil {
			convErr = fmt.Errorf("record completion: %w", err)
		}
	}
	if convErr != nil {
		return c.fail(ctx, logger, result, convErr)
	}

	result.Outcome = OutcomeCompleted
	result.ManifestPath = manifest
	metrics.ConversionsTotal.WithLabelValues(string(OutcomeCompleted)).Inc()
	metrics.ConversionDuration.WithLabelValues(string(OutcomeCompleted)).Observe(result.Duration.Seconds())
	logger.Info("conversion completed",
		logging.String(logging.FieldEventType, "conversion_completed"),
		logging.String("manifest", manifest),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (c *Converter) fail(ctx context.Context, logger *slog.Logger, result Result, convErr error) (Result, error) {
	result.Outcome = OutcomeFailed
	result.Message = services.FailureMessage(convErr)
	// Record the failure even when the job context was cancelled by shutdown.
	if err := c.assets.MarkFailed(context.WithoutCancel(ctx), result.AssetID, result.Message); err != nil {
		convErr = errors.Join(convErr, fmt.Errorf("record failure: %w", err))
	}
	class := services.Classify(convErr)
	metrics.ConversionsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
	metrics.ConversionDuration.WithLabelValues(string(OutcomeFailed)).Observe(result.Duration.Seconds())
	metrics.ConversionFailures.WithLabelValues(class).Inc()
	logging.ErrorWithContext(logger, "conversion failed", "conversion_failed",
		logging.String(logging.FieldErrorHint, failureHint(convErr)),
		logging.String("class", class),
		logging.Error(convErr),
	)
	return result, convErr
}

// run performs the conversion and returns the manifest path relative to the
// storage directory.
func (c *Converter) run(ctx context.Context, assetID int64, logger *slog.Logger) (string, error) {
	asset, err := c.assets.GetByID(ctx, assetID)
	if err != nil {
		return "", err
	}
	if reason := asset.IneligibleReason(); reason != "" {
		return "", services.Wrap(services.ErrIneligibleAsset, "transcode", "check eligibility", reason, nil)
	}

	source, err := c.resolveSource(asset)
	if err != nil {
		return "", err
	}
	if err := c.inspectSource(ctx, source, logger); err != nil {
		return "", err
	}

	outputDir := filepath.Join(c.cfg.HLSRoot(), strconv.FormatInt(assetID, 10))
	if err := os.RemoveAll(outputDir); err != nil {
		return "", services.Wrap(services.ErrTranscodeFailure, "transcode", "prepare output", "failed to clear previous output", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTranscodeFailure, "transcode", "prepare output", "failed to create output directory", err)
	}
	playlist := filepath.Join(outputDir, ManifestName)

	if err := c.transcode(ctx, source, outputDir, playlist, logger); err != nil {
		_ = os.RemoveAll(outputDir)
		return "", err
	}
	if err := verifyManifest(playlist); err != nil {
		_ = os.RemoveAll(outputDir)
		return "", err
	}

	rel, err := filepath.Rel(c.cfg.Paths.StorageDir, playlist)
	if err != nil {
		return "", services.Wrap(services.ErrTranscodeFailure, "transcode", "record manifest", "manifest outside storage directory", err)
	}
	return filepath.ToSlash(rel), nil
}

func (c *Converter) resolveSource(asset *catalog.VideoAsset) (string, error) {
	source := asset.SourcePath
	if !filepath.IsAbs(source) {
		source = filepath.Join(c.cfg.Paths.SourceDir, source)
	}
	info, err := os.Stat(source)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "transcode", "resolve source", "source file "+source+" is missing", err)
	}
	if !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrIneligibleAsset, "transcode", "resolve source", "source "+source+" is not a regular file", nil)
	}
	return source, nil
}

// inspectSource rejects sources without a video stream. It is skipped when
// ffprobe is not installed.
func (c *Converter) inspectSource(ctx context.Context, source string, logger *slog.Logger) error {
	if !c.cfg.Transcoder.AllowSubprocess {
		return nil
	}
	probe, err := deps.ResolveBinary(c.cfg.Transcoder.FFprobeBinary, nil)
	if err != nil {
		logger.Debug("ffprobe unavailable; skipping source inspection", logging.Error(err))
		return nil
	}
	result, err := ffprobe.Inspect(ctx, c.runner, probe.Path, source)
	if err != nil {
		return services.Wrap(services.ErrTranscodeFailure, "transcode", "inspect source", "source could not be read as media", err)
	}
	video, ok := result.PrimaryVideo()
	if !ok {
		return services.Wrap(services.ErrIneligibleAsset, "transcode", "inspect source", "source has no video stream", nil)
	}
	logger.Info("source inspected",
		logging.String(logging.FieldEventType, "source_inspected"),
		logging.String("video_codec", video.CodecName),
		logging.String("resolution", fmt.Sprintf("%dx%d", video.Width, video.Height)),
		logging.Any("frame_rate", result.FrameRate()),
		logging.Any("duration_seconds", result.DurationSeconds()),
		logging.Int("video_streams", result.VideoStreamCount()),
		logging.Int("audio_streams", result.AudioStreamCount()),
	)
	return nil
}

func (c *Converter) transcode(ctx context.Context, source, outputDir, playlist string, logger *slog.Logger) error {
	binary, err := deps.ResolveBinary(c.cfg.Transcoder.Binary, c.cfg.Transcoder.SearchPaths)
	if err != nil {
		return services.Wrap(services.ErrCapabilityUnavailable, "transcode", "locate transcoder", "transcoder binary not found", err)
	}
	timeout := c.cfg.TranscodeTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := c.arguments(source, outputDir, playlist)
	logger.Info("launching transcoder",
		logging.String("command", binary.Path+" "+strings.Join(args, " ")),
		logging.Duration("timeout", timeout),
	)
	if _, err := c.runner.Run(runCtx, binary.Path, args...); err != nil {
		if errors.Is(err, services.ErrTimeout) {
			return services.Wrap(services.ErrTimeout, "transcode", "run transcoder", "transcoder exceeded "+timeout.String()+" deadline", err)
		}
		if errors.Is(err, services.ErrCapabilityUnavailable) {
			return err
		}
		return services.Wrap(services.ErrTranscodeFailure, "transcode", "run transcoder", "", err)
	}
	return nil
}

func (c *Converter) arguments(source, outputDir, playlist string) []string {
	t := c.cfg.Transcoder
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-v", "error",
		"-i", source,
		"-c:v", t.VideoCodec,
		"-preset", t.Preset,
		"-c:a", t.AudioCodec,
		"-f", "hls",
		"-hls_time", strconv.Itoa(t.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		playlist,
	}
}

func verifyManifest(playlist string) error {
	data, err := os.ReadFile(playlist)
	if err != nil {
		return services.Wrap(services.ErrTranscodeFailure, "transcode", "verify manifest", "transcoder produced no playlist", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "#EXTM3U") {
		return services.Wrap(services.ErrTranscodeFailure, "transcode", "verify manifest", "playlist is not a valid HLS manifest", nil)
	}
	return nil
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrCapabilityUnavailable):
		return "run coursecast hls capability to diagnose the transcoder"
	case errors.Is(err, services.ErrTimeout):
		return "raise transcoder.timeout or inspect the source length"
	case errors.Is(err, services.ErrNotFound):
		return "restore the upload under paths.source_dir"
	case errors.Is(err, services.ErrIneligibleAsset):
		return "the upload is not a convertible video"
	default:
		return "inspect the error message and rerun coursecast hls encode --force"
	}
}
