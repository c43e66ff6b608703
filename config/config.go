/*
Package config loads process configuration from the environment.

All knobs default to the production values; only the channels normally
need setting. Port and database path come from flags in cmd/server.
*/
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the environment-driven configuration, prefix TRACKER_.
type Config struct {
	// AdapterURL is the chat adapter's internal API base URL.
	AdapterURL string `envconfig:"ADAPTER_URL" default:"http://localhost:9090"`

	// Channels
	WarningChannel  string `envconfig:"WARNING_CHANNEL" default:"attendance-warnings"`
	TrackingChannel string `envconfig:"TRACKING_CHANNEL" default:"leave-tracking"`
	RequestChannel  string `envconfig:"REQUEST_CHANNEL" default:"leave-requests"`

	// Daily sweep times, UTC wall clock "HH:MM".
	// 18:30 UTC = 00:00 IST (warning sweep for yesterday)
	// 17:30 UTC = 23:00 IST (submission reminder for today)
	WarningSweepAt  string `envconfig:"WARNING_SWEEP_AT" default:"18:30"`
	ReminderSweepAt string `envconfig:"REMINDER_SWEEP_AT" default:"17:30"`

	// Policy knobs
	EligibilityTTL   time.Duration `envconfig:"ELIGIBILITY_TTL" default:"30m"`
	RequestRetention int           `envconfig:"REQUEST_RETENTION_DAYS" default:"30"`

	BotName string `envconfig:"BOT_NAME" default:"tracker"`
}

// Load reads configuration from TRACKER_-prefixed environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("TRACKER", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	if _, err := ParseClockTime(cfg.WarningSweepAt); err != nil {
		return Config{}, fmt.Errorf("TRACKER_WARNING_SWEEP_AT: %w", err)
	}
	if _, err := ParseClockTime(cfg.ReminderSweepAt); err != nil {
		return Config{}, fmt.Errorf("TRACKER_REMINDER_SWEEP_AT: %w", err)
	}
	return cfg, nil
}

// ClockTime is a fixed UTC wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Next returns the next occurrence of the clock time strictly after now,
// in UTC.
func (c ClockTime) Next(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
