package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "qps-autoscaler", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Mode)
	assert.Equal(t, 5, cfg.Controller.Parallelism)
	assert.Equal(t, 50*time.Second, cfg.Controller.TickDeadline)
	assert.Equal(t, 30*time.Second, cfg.Controller.CallTimeout)
	assert.Equal(t, 5, cfg.Circuit.ErrorThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Circuit.OpenFor)
	assert.Equal(t, "ap-southeast-1", cfg.Cloud.Region)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.True(t, cfg.Prometheus.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTOSCALER_CONTROLLER_PARALLELISM", "10")
	t.Setenv("AUTOSCALER_CLOUD_REGION", "ap-southeast-3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Controller.Parallelism)
	assert.Equal(t, "ap-southeast-3", cfg.Cloud.Region)
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.App.Mode = "staging" }},
		{"bad log level", func(c *Config) { c.App.LogLevel = "trace" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"zero parallelism", func(c *Config) { c.Controller.Parallelism = 0 }},
		{"call timeout above deadline", func(c *Config) { c.Controller.CallTimeout = c.Controller.TickDeadline }},
		{"zero circuit threshold", func(c *Config) { c.Circuit.ErrorThreshold = 0 }},
		{"missing region", func(c *Config) { c.Cloud.Region = "" }},
		{"bad api port", func(c *Config) { c.API.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateProductionRequiresCredentials(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.App.Mode = "production"
	assert.Error(t, cfg.Validate())

	cfg.Cloud.AccessKeyID = "AK"
	cfg.Cloud.SecretAccessKey = "SK"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "svc", Password: "pw", Name: "autoscaler"}
	assert.Equal(t, "host=db port=5432 user=svc password=pw dbname=autoscaler sslmode=disable", d.DSN())

	d.SSLMode = "require"
	assert.Contains(t, d.DSN(), "sslmode=require")
}
