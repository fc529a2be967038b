package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultsFillsSpecDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()

	assert.Equal(t, 5, c.MaxAgentDepth)
	assert.Equal(t, 25, c.MaxTurns)
	assert.Equal(t, "thompson", c.BanditMode)
	assert.Equal(t, RewardWeights{Success: 0.5, Time: 0.3, Cost: 0.2}, c.RewardWeights)
	assert.Equal(t, 0.5, c.BanFailureThreshold)
	assert.Equal(t, 10, c.BanMinTasks)
	assert.Equal(t, 300_000, c.BanDurationMs)
	assert.Equal(t, 10, c.AutosaveInterval)
	assert.Equal(t, 0.6, c.GuardianConfidenceThreshold)
}

func TestValidateRejectsUnknownBanditMode(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.BanditMode = "roulette"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.BanFailureThreshold = 1.5
	assert.Error(t, c.Validate())
}

func TestLoadConfigFileExpandsEnvAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conduit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: test
max_turns: 40
guardian_confidence_threshold: ${GUARDIAN_THRESHOLD}
`), 0o644))
	t.Setenv("GUARDIAN_THRESHOLD", "0.75")

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "test", cfg.Name)
	assert.Equal(t, 40, cfg.MaxTurns)
	assert.Equal(t, 0.75, cfg.GuardianConfidenceThreshold)
	assert.Equal(t, 5, cfg.MaxAgentDepth) // default preserved
}
