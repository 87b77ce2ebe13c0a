package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTranscoder(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		c.Paths.SourceDir = defaultSourceDir
	}
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscoder() error {
	if value, ok := os.LookupEnv("COURSECAST_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Transcoder.Binary = strings.TrimSpace(value)
	}
	c.Transcoder.Binary = strings.TrimSpace(c.Transcoder.Binary)
	if c.Transcoder.Binary == "" {
		c.Transcoder.Binary = defaultTranscoderBinary
	}
	if strings.HasPrefix(c.Transcoder.Binary, "~") {
		expanded, err := expandPath(c.Transcoder.Binary)
		if err != nil {
			return fmt.Errorf("transcoder.binary: %w", err)
		}
		c.Transcoder.Binary = expanded
	}
	c.Transcoder.FFprobeBinary = strings.TrimSpace(c.Transcoder.FFprobeBinary)
	if c.Transcoder.FFprobeBinary == "" {
		c.Transcoder.FFprobeBinary = defaultFFprobeBinary
	}

	paths := make([]string, 0, len(c.Transcoder.SearchPaths))
	for _, candidate := range c.Transcoder.SearchPaths {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		expanded, err := expandPath(candidate)
		if err != nil {
			return fmt.Errorf("transcoder.search_paths: %w", err)
		}
		paths = append(paths, expanded)
	}
	c.Transcoder.SearchPaths = paths

	c.Transcoder.VideoCodec = strings.TrimSpace(c.Transcoder.VideoCodec)
	if c.Transcoder.VideoCodec == "" {
		c.Transcoder.VideoCodec = defaultVideoCodec
	}
	c.Transcoder.AudioCodec = strings.TrimSpace(c.Transcoder.AudioCodec)
	if c.Transcoder.AudioCodec == "" {
		c.Transcoder.AudioCodec = defaultAudioCodec
	}
	c.Transcoder.Preset = strings.TrimSpace(c.Transcoder.Preset)
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
