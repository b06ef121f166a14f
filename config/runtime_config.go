package config

import (
	"errors"
	"fmt"
)

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the web API. It excludes
// hardware-specific settings.
type RuntimeConfig struct {
	MonitorSleepTimeoutSeconds int     `yaml:"MonitorSleepTimeoutSeconds" json:"MonitorSleepTimeoutSeconds"`
	DistanceThreshold          float64 `yaml:"DistanceThreshold" json:"DistanceThreshold"`
}

// Runtime extracts the runtime subset.
func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{
		MonitorSleepTimeoutSeconds: c.MonitorSleepTimeoutSeconds,
		DistanceThreshold:          c.Presence.DistanceThreshold,
	}
}

// Apply merges r into c.
func (c *Config) Apply(r RuntimeConfig) {
	c.MonitorSleepTimeoutSeconds = r.MonitorSleepTimeoutSeconds
	c.Presence.DistanceThreshold = r.DistanceThreshold
}

func (r RuntimeConfig) Validate() error {
	var errs []error
	if r.MonitorSleepTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("MonitorSleepTimeoutSeconds (%d) must be at least 1", r.MonitorSleepTimeoutSeconds))
	}
	if r.DistanceThreshold < 0 {
		errs = append(errs, fmt.Errorf("Presence.DistanceThreshold (%v) must be non-negative", r.DistanceThreshold))
	}
	return errors.Join(errs...)
}
