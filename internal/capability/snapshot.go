package capability

import "time"

// CacheKey is the fixed key under which the capability snapshot is cached.
const CacheKey = "transcoder.capability"

// Snapshot is the outcome of a capability probe.
type Snapshot struct {
	Available           bool          `json:"available"`
	SubprocessAvailable bool          `json:"subprocess_available"`
	BinaryPath          string        `json:"binary_path,omitempty"`
	Version             string        `json:"version,omitempty"`
	MissingRequirements []string      `json:"missing_requirements,omitempty"`
	CachedAt            time.Time     `json:"cached_at"`
	TTL                 time.Duration `json:"ttl"`
	// Cached is set on snapshots served from the cache and never persisted.
	Cached bool `json:"-"`
}

// Remediation returns operator steps for each missing requirement.
func (s Snapshot) Remediation() []string {
	if s.Available {
		return nil
	}
	var steps []string
	if !s.SubprocessAvailable {
		steps = append(steps, "Set transcoder.allow_subprocess = true in the configuration file")
	}
	if s.BinaryPath == "" {
		steps = append(steps,
			"Install ffmpeg (for example: apt install ffmpeg, brew install ffmpeg)",
			"Or point transcoder.binary (or COURSECAST_FFMPEG) at an ffmpeg executable",
		)
	} else if s.Version == "" && s.SubprocessAvailable {
		steps = append(steps, "Run '"+s.BinaryPath+" -version' manually to see why the binary fails")
	}
	steps = append(steps, "Run 'coursecast hls capability --clear-cache' after fixing the host")
	return steps
}
