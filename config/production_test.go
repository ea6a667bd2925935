package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "disparador",
			User:     "disparador",
			Password: "secret",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  time.Minute,
		},
		Webhook: WebhookConfig{
			URL:     "https://n8n.example.com/webhook/send",
			Timeout: 30 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			SchedulerPollInterval: 30 * time.Second,
			RunLockTTL:            2 * time.Minute,
		},
		Deployment: DeploymentConfig{
			Environment: "production",
		},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, ValidateProductionConfig(validTestConfig()))
	})

	t.Run("missing webhook URL is rejected", func(t *testing.T) {
		// A forgotten WEBHOOK_URL must fail at startup, not silently swap
		// in the mock sender
		cfg := validTestConfig()
		cfg.Webhook.URL = ""
		err := ValidateProductionConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WEBHOOK_URL is required")
	})

	t.Run("mock sender is rejected in production", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Webhook.URL = "mock"
		err := ValidateProductionConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be \"mock\" in production")
	})

	t.Run("mock sender is allowed outside production", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Webhook.URL = "mock"
		cfg.Deployment.Environment = "development"
		require.NoError(t, ValidateProductionConfig(cfg))
	})

	t.Run("webhook timeout must be positive", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Webhook.Timeout = 0
		err := ValidateProductionConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WEBHOOK_TIMEOUT")
	})
}
