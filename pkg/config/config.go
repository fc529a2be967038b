// Package config loads and validates conduit's root configuration.
// Grounded on the teacher's config-first idiom (pkg/config/config.go):
// a single YAML-tagged root struct with SetDefaults/Validate, loaded
// through a swappable Provider so the same struct can come from a local
// file, a remote KV store, or an in-process default.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration, per spec §6's recognized options.
type Config struct {
	Version string `yaml:"version,omitempty"`
	Name    string `yaml:"name,omitempty"`

	MaxAgentDepth int `yaml:"max_agent_depth,omitempty"`
	MaxTurns      int `yaml:"max_turns,omitempty"`
	TokenBudget   int `yaml:"token_budget,omitempty"`

	BanditMode    string        `yaml:"bandit_mode,omitempty"`
	RewardWeights RewardWeights `yaml:"reward_weights,omitempty"`

	BanFailureThreshold float64       `yaml:"ban_failure_threshold,omitempty"`
	BanMinTasks         int           `yaml:"ban_min_tasks,omitempty"`
	BanDurationMs       int           `yaml:"ban_duration_ms,omitempty"`
	AutosaveInterval    int           `yaml:"autosave_interval,omitempty"`
	RetentionWindow     time.Duration `yaml:"retention_window,omitempty"`

	GuardianConfidenceThreshold float64 `yaml:"guardian_confidence_threshold,omitempty"`

	Database *DatabaseConfig `yaml:"database,omitempty"`
	Logger   *LoggerConfig   `yaml:"logger,omitempty"`
}

// RewardWeights mirrors pkg/orchestrator.RewardWeights in a
// config-loadable, YAML-tagged shape (kept as a distinct type so this
// package has no import-time dependency on pkg/orchestrator).
type RewardWeights struct {
	Success float64 `yaml:"success,omitempty"`
	Time    float64 `yaml:"time,omitempty"`
	Cost    float64 `yaml:"cost,omitempty"`
}

// DatabaseConfig names the SQL backend conduit persists sessions and
// edges to.
type DatabaseConfig struct {
	Driver string `yaml:"driver,omitempty"` // sqlite, postgres, mysql
	DSN    string `yaml:"dsn,omitempty"`
}

// LoggerConfig configures the structured logger, per the teacher's
// pkg/config LoggerConfig shape.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // json, console
}

// SetDefaults fills unset fields with the spec §6 defaults.
func (c *Config) SetDefaults() {
	if c.MaxAgentDepth == 0 {
		c.MaxAgentDepth = 5
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = 25
	}
	if c.BanditMode == "" {
		c.BanditMode = "thompson"
	}
	if c.RewardWeights == (RewardWeights{}) {
		c.RewardWeights = RewardWeights{Success: 0.5, Time: 0.3, Cost: 0.2}
	}
	if c.BanFailureThreshold == 0 {
		c.BanFailureThreshold = 0.5
	}
	if c.BanMinTasks == 0 {
		c.BanMinTasks = 10
	}
	if c.BanDurationMs == 0 {
		c.BanDurationMs = 300_000
	}
	if c.AutosaveInterval == 0 {
		c.AutosaveInterval = 10
	}
	if c.GuardianConfidenceThreshold == 0 {
		c.GuardianConfidenceThreshold = 0.6
	}
	if c.Logger == nil {
		c.Logger = &LoggerConfig{Level: "info", Format: "console"}
	}
	if c.Database == nil {
		c.Database = &DatabaseConfig{Driver: "sqlite", DSN: "conduit.db"}
	}
}

// Validate checks invariants SetDefaults cannot repair, per the
// teacher's Validate-after-decode step in Loader.Load.
func (c *Config) Validate() error {
	if c.MaxAgentDepth < 1 {
		return fmt.Errorf("config: max_agent_depth must be >= 1")
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("config: max_turns must be >= 1")
	}
	switch c.BanditMode {
	case "ucb1", "thompson", "linucb":
	default:
		return fmt.Errorf("config: unknown bandit_mode %q", c.BanditMode)
	}
	if c.BanFailureThreshold < 0 || c.BanFailureThreshold > 1 {
		return fmt.Errorf("config: ban_failure_threshold must be in [0,1]")
	}
	if c.GuardianConfidenceThreshold < 0 || c.GuardianConfidenceThreshold > 1 {
		return fmt.Errorf("config: guardian_confidence_threshold must be in [0,1]")
	}
	sum := c.RewardWeights.Success + c.RewardWeights.Time + c.RewardWeights.Cost
	if sum <= 0 {
		return fmt.Errorf("config: reward_weights must sum to a positive value")
	}
	return nil
}
