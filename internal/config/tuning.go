package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// tuningFile is the shape of the optional daylog.yml overrides. Every field
// is optional; zero values leave the defaults alone.
type tuningFile struct {
	Collect struct {
		LocationInterval string  `yaml:"location_interval"`
		CoarseThresholdM float64 `yaml:"coarse_threshold_m"`
		FineThresholdM   float64 `yaml:"fine_threshold_m"`
		PhotoInterval    string  `yaml:"photo_interval"`
		PhotoMaxPerPoll  int     `yaml:"photo_max_per_poll"`
		CalendarInterval string  `yaml:"calendar_interval"`
	} `yaml:"collect"`
	Digest struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"digest"`
}

func applyTuningFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var t tuningFile
	if err := yaml.Unmarshal(data, &t); err != nil {
		return err
	}

	if t.Collect.LocationInterval != "" {
		d, err := parseInterval(t.Collect.LocationInterval)
		if err != nil {
			return err
		}
		cfg.Collect.LocationInterval = d
	}

	if t.Collect.CoarseThresholdM > 0 {
		cfg.Collect.CoarseThresholdM = t.Collect.CoarseThresholdM
	}

	if t.Collect.FineThresholdM > 0 {
		cfg.Collect.FineThresholdM = t.Collect.FineThresholdM
	}

	if t.Collect.PhotoInterval != "" {
		d, err := parseInterval(t.Collect.PhotoInterval)
		if err != nil {
			return err
		}
		cfg.Collect.PhotoInterval = d
	}

	if t.Collect.PhotoMaxPerPoll > 0 {
		cfg.Collect.PhotoMaxPerPoll = t.Collect.PhotoMaxPerPoll
	}

	if t.Collect.CalendarInterval != "" {
		d, err := parseInterval(t.Collect.CalendarInterval)
		if err != nil {
			return err
		}
		cfg.Collect.CalendarInterval = d
	}

	if t.Digest.Schedule != "" {
		cfg.Digest.Schedule = t.Digest.Schedule
	}

	return nil
}

func parseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval %q must be positive", s)
	}
	return d, nil
}
