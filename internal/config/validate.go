package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscoder(); err != nil {
		return err
	}
	if err := c.validateCapability(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateBulk(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscoder() error {
	return ensurePositiveMap(map[string]int{
		"transcoder.segment_seconds": c.Transcoder.SegmentSeconds,
		"transcoder.timeout":         c.Transcoder.Timeout,
	})
}

func (c *Config) validateCapability() error {
	if c.Capability.CacheTTL <= 0 {
		return errors.New("capability.cache_ttl must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 0 {
		return errors.New("workers.count must be zero (auto) or positive")
	}
	if err := ensurePositiveMap(map[string]int{
		"workers.poll_interval":      c.Workers.PollInterval,
		"workers.heartbeat_interval": c.Workers.HeartbeatInterval,
		"workers.heartbeat_timeout":  c.Workers.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Workers.HeartbeatTimeout <= c.Workers.HeartbeatInterval {
		return errors.New("workers.heartbeat_timeout must be greater than workers.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateBulk() error {
	if c.Bulk.DefaultLimit <= 0 {
		return errors.New("bulk.default_limit must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
