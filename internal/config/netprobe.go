package config

import (
	"encoding/json"
	"os"
	"time"
)

// NetProbeConfig is the persisted network-test configuration. It is
// read once at run start and written back only on an explicit save.
type NetProbeConfig struct {
	TargetHost      string `json:"target_host"`
	PingCount       int    `json:"ping_count"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// DefaultNetProbeConfig returns the built-in probe settings.
func DefaultNetProbeConfig() NetProbeConfig {
	return NetProbeConfig{
		TargetHost:      DefaultPlaceholderTgt,
		PingCount:       DefaultPingCount,
		TimeoutSeconds:  int(DefaultPingTimeout / time.Second),
		IntervalSeconds: int(DefaultProbeInterval / time.Second),
	}
}

// LoadNetProbeConfig reads the probe settings from path. A missing
// file yields the defaults without error; a malformed file yields the
// defaults and the decode error so the caller can report it.
func LoadNetProbeConfig(path string) (NetProbeConfig, error) {
	cfg := DefaultNetProbeConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultNetProbeConfig(), err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the probe settings to path.
func (c NetProbeConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Timeout returns the per-probe timeout.
func (c NetProbeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the pause between probes.
func (c NetProbeConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// applyDefaults fills fields a hand-edited file left zero.
func (c *NetProbeConfig) applyDefaults() {
	def := DefaultNetProbeConfig()
	if c.TargetHost == "" {
		c.TargetHost = def.TargetHost
	}
	if c.PingCount <= 0 {
		c.PingCount = def.PingCount
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = def.TimeoutSeconds
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = def.IntervalSeconds
	}
}
