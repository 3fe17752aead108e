// Package config loads service configuration from the environment and
// the per-task-type resource requirement table from YAML.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full service configuration. Every knob has a default;
// an empty environment yields the original deployment's settings.
type Config struct {
	LogLevel string `env:"GENQUEUE_LOG_LEVEL" envDefault:"info"`
	DevMode  bool   `env:"GENQUEUE_DEV_MODE" envDefault:"false"`
	HTTPAddr string `env:"GENQUEUE_HTTP_ADDR" envDefault:":8080"`

	// Admission queue.
	FailureThreshold    int           `env:"GENQUEUE_FAILURE_THRESHOLD" envDefault:"3"`
	Cooldown            time.Duration `env:"GENQUEUE_COOLDOWN" envDefault:"60s"`
	DefaultTaskTimeout  time.Duration `env:"GENQUEUE_TASK_TIMEOUT" envDefault:"2m"`
	GateRecheckInterval time.Duration `env:"GENQUEUE_GATE_RECHECK_INTERVAL" envDefault:"2s"`
	HeadroomMB          uint64        `env:"GENQUEUE_HEADROOM_MB" envDefault:"0"`
	RecentTaskLimit     int           `env:"GENQUEUE_RECENT_TASK_LIMIT" envDefault:"50"`

	// Metrics collector.
	WindowDuration    time.Duration `env:"GENQUEUE_WINDOW_DURATION" envDefault:"5m"`
	SnapshotInterval  time.Duration `env:"GENQUEUE_SNAPSHOT_INTERVAL" envDefault:"5s"`
	EventBufferCap    int           `env:"GENQUEUE_EVENT_BUFFER_CAP" envDefault:"500"`
	SnapshotBufferCap int           `env:"GENQUEUE_SNAPSHOT_BUFFER_CAP" envDefault:"60"`
	HistoryLimit      int           `env:"GENQUEUE_HISTORY_LIMIT" envDefault:"12"`

	// Resource gate. Empty RequirementsFile means no table is loaded;
	// the gate then relies on per-task declarations alone.
	RequirementsFile string `env:"GENQUEUE_REQUIREMENTS_FILE"`

	// MemoryProbe selects the probe implementation: "system" reads the
	// host's memory counters, "none" disables gating.
	MemoryProbe string `env:"GENQUEUE_MEMORY_PROBE" envDefault:"system"`

	// ExecutorURL is the webhook released tasks are POSTed to. Empty
	// means no executor is wired and tasks queue until one is (or the
	// daemon runs with --simulate).
	ExecutorURL string `env:"GENQUEUE_EXECUTOR_URL"`
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	// A missing .env is the normal production case; the environment may
	// be set directly.
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %s", c.Cooldown)
	}
	if c.DefaultTaskTimeout <= 0 {
		return fmt.Errorf("task timeout must be positive, got %s", c.DefaultTaskTimeout)
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot interval must be positive, got %s", c.SnapshotInterval)
	}
	if c.WindowDuration < c.SnapshotInterval {
		return fmt.Errorf("window duration %s is shorter than the snapshot interval %s",
			c.WindowDuration, c.SnapshotInterval)
	}
	switch c.MemoryProbe {
	case "system", "none":
	default:
		return fmt.Errorf("unknown memory probe %q (want system or none)", c.MemoryProbe)
	}
	return nil
}
