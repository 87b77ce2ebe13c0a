package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	SourceDir  string `toml:"source_dir"`
	StorageDir string `toml:"storage_dir"`
	LogDir     string `toml:"log_dir"`
}

// Transcoder contains settings for the external HLS transcoder.
type Transcoder struct {
	// Binary is the configured transcoder executable (name or absolute path).
	Binary string `toml:"binary"`
	// SearchPaths lists well-known install locations probed when Binary is not
	// found on PATH.
	SearchPaths   []string `toml:"search_paths"`
	FFprobeBinary string   `toml:"ffprobe_binary"`
	// AllowSubprocess gates every external process the pipeline spawns.
	AllowSubprocess bool   `toml:"allow_subprocess"`
	SegmentSeconds  int    `toml:"segment_seconds"`
	Timeout         int    `toml:"timeout"`
	VideoCodec      string `toml:"video_codec"`
	AudioCodec      string `toml:"audio_codec"`
	Preset          string `toml:"preset"`
}

// Capability contains capability probe caching settings.
type Capability struct {
	CacheTTL int `toml:"cache_ttl"`
}

// Workers contains worker pool timing.
type Workers struct {
	Count             int `toml:"count"`
	PollInterval      int `toml:"poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
}

// Bulk contains bulk conversion defaults.
type Bulk struct {
	DefaultLimit int `toml:"default_limit"`
}

// API contains the worker status API settings.
type API struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for coursecast.
//
// Configuration sections by subsystem:
//   - Paths: database, upload, HLS storage and log directories
//   - Transcoder: ffmpeg location and HLS encoding parameters
//   - Capability: probe cache lifetime
//   - Workers: pool size, polling and heartbeat timing
//   - Bulk: batch defaults for backfill runs
//   - API: worker status endpoint
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Transcoder Transcoder `toml:"transcoder"`
	Capability Capability `toml:"capability"`
	Workers    Workers    `toml:"workers"`
	Bulk       Bulk       `toml:"bulk"`
	API        API        `toml:"api"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("coursecast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
// SourceDir is created on a best-effort basis since uploads may live on a
// mount that is not always present.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StorageDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.SourceDir) != "" {
		_ = os.MkdirAll(c.Paths.SourceDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "coursecast.db")
}

// LockPath returns the worker daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "coursecast-worker.lock")
}

// LogFilePath returns the log file shared by CLI invocations and the worker.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "coursecast.log")
}

// HLSRoot returns the directory that holds per-asset HLS output.
func (c *Config) HLSRoot() string {
	return filepath.Join(c.Paths.StorageDir, "hls")
}

// CapabilityTTL returns the probe cache lifetime.
func (c *Config) CapabilityTTL() time.Duration {
	return time.Duration(c.Capability.CacheTTL) * time.Second
}

// TranscodeTimeout returns the deadline applied to a single transcoder run.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Transcoder.Timeout) * time.Second
}

// PollInterval returns how often idle workers check the queue.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workers.PollInterval) * time.Second
}

// HeartbeatInterval returns how often running jobs refresh their heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workers.HeartbeatInterval) * time.Second
}

// HeartbeatTimeout returns the age after which a running job is considered abandoned.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Workers.HeartbeatTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
