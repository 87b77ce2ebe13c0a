package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coursecast/internal/command"
	"coursecast/internal/config"
	"coursecast/internal/deps"
	"coursecast/internal/logging"
	"coursecast/internal/metrics"
)

// versionTimeout bounds the "<binary> -version" query.
const versionTimeout = 10 * time.Second

// Probe determines whether the transcoder can run on this host.
type Probe struct {
	cfg    *config.Config
	cache  Cache
	runner command.Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewProbe builds a probe. A nil cache falls back to a MemoryCache.
func NewProbe(cfg *config.Config, cache Cache, runner command.Runner, logger *slog.Logger) *Probe {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if runner == nil {
		runner = command.NewRunner(cfg)
	}
	return &Probe{
		cfg:    cfg,
		cache:  cache,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "capability"),
		now:    time.Now,
	}
}

// TTL returns the cache lifetime for snapshots.
func (p *Probe) TTL() time.Duration {
	return p.cfg.CapabilityTTL()
}

// Check returns a cached snapshot younger than the TTL, or probes the host and
// caches the result. Cache failures are logged and never surface to callers.
func (p *Probe) Check(ctx context.Context) Snapshot {
	if snapshot, ok := p.cached(ctx); ok {
		metrics.CapabilityChecksTotal.WithLabelValues("cache").Inc()
		metrics.CapabilityAvailable.Set(metrics.BoolGauge(snapshot.Available))
		return snapshot
	}

	snapshot := p.probe(ctx)
	metrics.CapabilityChecksTotal.WithLabelValues("probe").Inc()
	metrics.CapabilityAvailable.Set(metrics.BoolGauge(snapshot.Available))

	payload, err := json.Marshal(snapshot)
	if err != nil {
		p.logger.Warn("capability snapshot encode failed",
			logging.String(logging.FieldEventType, "capability_cache_encode_failed"),
			logging.Error(err),
		)
		return snapshot
	}
	if err := p.cache.Set(ctx, CacheKey, Entry{Payload: payload, CachedAt: snapshot.CachedAt}); err != nil {
		logging.WarnWithContext(p.logger, "capability cache write failed", "capability_cache_write_failed",
			logging.String(logging.FieldErrorHint, "check database permissions"),
			logging.String(logging.FieldImpact, "the next check probes the host again"),
			logging.Error(err),
		)
	}
	return snapshot
}

// ClearCache drops the cached snapshot so the next Check probes the host.
func (p *Probe) ClearCache(ctx context.Context) error {
	if err := p.cache.Invalidate(ctx, CacheKey); err != nil {
		return err
	}
	p.logger.Info("capability cache cleared", logging.String(logging.FieldEventType, "capability_cache_cleared"))
	return nil
}

func (p *Probe) cached(ctx context.Context) (Snapshot, bool) {
	ttl := p.TTL()
	if ttl <= 0 {
		return Snapshot{}, false
	}
	entry, ok, err := p.cache.Get(ctx, CacheKey)
	if err != nil {
		logging.WarnWithContext(p.logger, "capability cache read failed", "capability_cache_read_failed",
			logging.String(logging.FieldErrorHint, "check database health with coursecast requirements"),
			logging.String(logging.FieldImpact, "probing the host without cache"),
			logging.Error(err),
		)
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}
	if age := p.now().Sub(entry.CachedAt); age < 0 || age >= ttl {
		return Snapshot{}, false
	}
	var snapshot Snapshot
	if err := json.Unmarshal(entry.Payload, &snapshot); err != nil {
		p.logger.Warn("capability cache entry unreadable",
			logging.String(logging.FieldEventType, "capability_cache_decode_failed"),
			logging.Error(err),
		)
		return Snapshot{}, false
	}
	snapshot.CachedAt = entry.CachedAt
	snapshot.TTL = ttl
	snapshot.Cached = true
	return snapshot, true
}

func (p *Probe) probe(ctx context.Context) Snapshot {
	snapshot := Snapshot{
		SubprocessAvailable: p.cfg.Transcoder.AllowSubprocess,
		CachedAt:            p.now().UTC(),
		TTL:                 p.TTL(),
	}
	if !snapshot.SubprocessAvailable {
		snapshot.MissingRequirements = append(snapshot.MissingRequirements,
			"Subprocess execution is disabled (transcoder.allow_subprocess = false)")
	}

	resolved, err := deps.ResolveBinary(p.cfg.Transcoder.Binary, p.cfg.Transcoder.SearchPaths)
	if err != nil {
		snapshot.MissingRequirements = append(snapshot.MissingRequirements,
			fmt.Sprintf("Transcoder binary %q not found on PATH or in known install locations", p.cfg.Transcoder.Binary))
	} else {
		snapshot.BinaryPath = resolved.Path
	}

	if snapshot.SubprocessAvailable && snapshot.BinaryPath != "" {
		version, err := p.queryVersion(ctx, snapshot.BinaryPath)
		if err != nil {
			snapshot.MissingRequirements = append(snapshot.MissingRequirements,
				fmt.Sprintf("Transcoder binary %s did not report a version: %v", snapshot.BinaryPath, err))
		} else {
			snapshot.Version = version
		}
	}

	snapshot.Available = snapshot.SubprocessAvailable && snapshot.BinaryPath != "" && snapshot.Version != ""
	p.logger.Info("capability probed",
		logging.String(logging.FieldEventType, "capability_probed"),
		logging.Bool("available", snapshot.Available),
		logging.String("binary", snapshot.BinaryPath),
		logging.String("version", snapshot.Version),
		logging.Int("missing", len(snapshot.MissingRequirements)),
	)
	return snapshot
}

func (p *Probe) queryVersion(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := p.runner.Run(ctx, binary, "-version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty version output")
	}
	return line, nil
}
