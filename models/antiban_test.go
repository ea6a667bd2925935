package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAntiBanPresets(t *testing.T) {
	t.Run("safe", func(t *testing.T) {
		cfg := AntiBanPreset(ProtectionLevelSafe)
		assert.Equal(t, ProtectionLevelSafe, cfg.ProtectionLevel)
		assert.Equal(t, 30, cfg.MinDelaySeconds)
		assert.Equal(t, 90, cfg.MaxDelaySeconds)
		assert.Equal(t, 200, cfg.DailyLimit)
		assert.Equal(t, 10, cfg.BatchSize)
		assert.Equal(t, 15, cfg.BatchPauseMinutes)
		assert.True(t, cfg.EnableRandomVariation)
		require.NoError(t, cfg.Validate())
	})

	t.Run("moderate", func(t *testing.T) {
		cfg := AntiBanPreset(ProtectionLevelModerate)
		assert.Equal(t, ProtectionLevelModerate, cfg.ProtectionLevel)
		assert.Equal(t, 8, cfg.MinDelaySeconds)
		assert.Equal(t, 25, cfg.MaxDelaySeconds)
		assert.Equal(t, 800, cfg.DailyLimit)
		assert.Equal(t, 50, cfg.BatchSize)
		assert.Equal(t, 5, cfg.BatchPauseMinutes)
		assert.True(t, cfg.EnableRandomVariation)
		require.NoError(t, cfg.Validate())
	})

	t.Run("aggressive", func(t *testing.T) {
		cfg := AntiBanPreset(ProtectionLevelAggressive)
		assert.Equal(t, ProtectionLevelAggressive, cfg.ProtectionLevel)
		assert.Equal(t, 3, cfg.MinDelaySeconds)
		assert.Equal(t, 10, cfg.MaxDelaySeconds)
		assert.Equal(t, 1500, cfg.DailyLimit)
		assert.Equal(t, 100, cfg.BatchSize)
		assert.Equal(t, 2, cfg.BatchPauseMinutes)
		assert.False(t, cfg.EnableRandomVariation)
		require.NoError(t, cfg.Validate())
	})

	t.Run("custom starts from moderate", func(t *testing.T) {
		cfg := AntiBanPreset(ProtectionLevelCustom)
		assert.Equal(t, ProtectionLevelCustom, cfg.ProtectionLevel)
		moderate := AntiBanPreset(ProtectionLevelModerate)
		assert.Equal(t, moderate.MinDelaySeconds, cfg.MinDelaySeconds)
		assert.Equal(t, moderate.MaxDelaySeconds, cfg.MaxDelaySeconds)
		assert.Equal(t, moderate.DailyLimit, cfg.DailyLimit)
	})
}

func TestSwitchPresetKeepsAIVariationToggle(t *testing.T) {
	cfg := AntiBanPreset(ProtectionLevelSafe)
	cfg.EnableAIVariation = true

	next := cfg.SwitchPreset(ProtectionLevelAggressive)
	assert.Equal(t, ProtectionLevelAggressive, next.ProtectionLevel)
	assert.True(t, next.EnableAIVariation)

	// Everything else resets to the target preset
	assert.Equal(t, 3, next.MinDelaySeconds)
	assert.False(t, next.EnableRandomVariation)
}

func TestAntiBanConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AntiBanConfig)
		wantErr bool
	}{
		{"valid preset", func(c *AntiBanConfig) {}, false},
		{"unknown level", func(c *AntiBanConfig) { c.ProtectionLevel = "turbo" }, true},
		{"zero min delay", func(c *AntiBanConfig) { c.MinDelaySeconds = 0 }, true},
		{"negative max delay", func(c *AntiBanConfig) { c.MaxDelaySeconds = -5 }, true},
		{"min above max", func(c *AntiBanConfig) { c.MinDelaySeconds = 30; c.MaxDelaySeconds = 10 }, true},
		{"zero daily limit", func(c *AntiBanConfig) { c.DailyLimit = 0 }, true},
		{"zero batch size", func(c *AntiBanConfig) { c.BatchSize = 0 }, true},
		{"negative batch pause", func(c *AntiBanConfig) { c.BatchPauseMinutes = -1 }, true},
		{"zero batch pause allowed", func(c *AntiBanConfig) { c.BatchPauseMinutes = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AntiBanPreset(ProtectionLevelModerate)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAntiBanConfigScanValue(t *testing.T) {
	cfg := AntiBanPreset(ProtectionLevelSafe)
	cfg.EnableAIVariation = true

	value, err := cfg.Value()
	require.NoError(t, err)

	var decoded AntiBanConfig
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, cfg, decoded)

	var fromNil AntiBanConfig
	require.NoError(t, fromNil.Scan(nil))
	assert.Equal(t, AntiBanConfig{}, fromNil)
}
