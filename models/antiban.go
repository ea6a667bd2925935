package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ProtectionLevel selects an anti-ban pacing preset
type ProtectionLevel string

const (
	ProtectionLevelSafe       ProtectionLevel = "safe"
	ProtectionLevelModerate   ProtectionLevel = "moderate"
	ProtectionLevelAggressive ProtectionLevel = "aggressive"
	ProtectionLevelCustom     ProtectionLevel = "custom"
)

// Valid checks if the protection level is valid
func (p ProtectionLevel) Valid() bool {
	switch p {
	case ProtectionLevelSafe, ProtectionLevelModerate,
		ProtectionLevelAggressive, ProtectionLevelCustom:
		return true
	default:
		return false
	}
}

// AntiBanConfig is the pacing configuration of a single campaign run.
// It is resolved from a preset at selection time and immutable thereafter.
type AntiBanConfig struct {
	ProtectionLevel       ProtectionLevel `json:"protection_level"`
	MinDelaySeconds       int             `json:"min_delay_seconds"`
	MaxDelaySeconds       int             `json:"max_delay_seconds"`
	DailyLimit            int             `json:"daily_limit"`
	BatchSize             int             `json:"batch_size"`
	BatchPauseMinutes     int             `json:"batch_pause_minutes"`
	EnableRandomVariation bool            `json:"enable_random_variation"`
	EnableAIVariation     bool            `json:"enable_ai_variation"`
}

// Validate checks the configuration bounds
func (c AntiBanConfig) Validate() error {
	if !c.ProtectionLevel.Valid() {
		return fmt.Errorf("invalid protection level: %s", c.ProtectionLevel)
	}
	if c.MinDelaySeconds <= 0 || c.MaxDelaySeconds <= 0 {
		return fmt.Errorf("delay bounds must be positive")
	}
	if c.MinDelaySeconds > c.MaxDelaySeconds {
		return fmt.Errorf("min delay %d exceeds max delay %d", c.MinDelaySeconds, c.MaxDelaySeconds)
	}
	if c.DailyLimit < 1 {
		return fmt.Errorf("daily limit must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.BatchPauseMinutes < 0 {
		return fmt.Errorf("batch pause must not be negative")
	}
	return nil
}

// Value implements the driver.Valuer interface for AntiBanConfig
func (c AntiBanConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for AntiBanConfig
func (c *AntiBanConfig) Scan(value any) error {
	if value == nil {
		*c = AntiBanConfig{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AntiBanConfig", value)
	}

	return json.Unmarshal(bytes, c)
}

// AntiBanPreset resolves a protection level to its preset configuration.
// Custom levels start from the moderate preset and are overridden by the
// caller. Switching presets preserves only the AI-variation toggle of the
// previous configuration.
func AntiBanPreset(level ProtectionLevel) AntiBanConfig {
	switch level {
	case ProtectionLevelSafe:
		return AntiBanConfig{
			ProtectionLevel:       ProtectionLevelSafe,
			MinDelaySeconds:       30,
			MaxDelaySeconds:       90,
			DailyLimit:            200,
			BatchSize:             10,
			BatchPauseMinutes:     15,
			EnableRandomVariation: true,
		}
	case ProtectionLevelAggressive:
		return AntiBanConfig{
			ProtectionLevel:       ProtectionLevelAggressive,
			MinDelaySeconds:       3,
			MaxDelaySeconds:       10,
			DailyLimit:            1500,
			BatchSize:             100,
			BatchPauseMinutes:     2,
			EnableRandomVariation: false,
		}
	default:
		cfg := AntiBanConfig{
			ProtectionLevel:       ProtectionLevelModerate,
			MinDelaySeconds:       8,
			MaxDelaySeconds:       25,
			DailyLimit:            800,
			BatchSize:             50,
			BatchPauseMinutes:     5,
			EnableRandomVariation: true,
		}
		if level == ProtectionLevelCustom {
			cfg.ProtectionLevel = ProtectionLevelCustom
		}
		return cfg
	}
}

// SwitchPreset resolves a new preset while carrying over the AI-variation
// toggle from the previous configuration.
func (c AntiBanConfig) SwitchPreset(level ProtectionLevel) AntiBanConfig {
	next := AntiBanPreset(level)
	next.EnableAIVariation = c.EnableAIVariation
	return next
}
