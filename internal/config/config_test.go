package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Acquire.MinHTTPChars)
	assert.Equal(t, 100, cfg.Acquire.MinRenderChars)
	assert.Equal(t, 1500*time.Millisecond, cfg.Acquire.SettleDelay)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 12000, cfg.OpenAI.MaxPageChars)
	assert.Equal(t, "Mitte", cfg.Geo.SuburbTables["Bremen"]["28195"])
	assert.Len(t, cfg.Benchmark.Providers, 6)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
log_level: debug
acquire:
  engine: playwright
  min_http_chars: 250
policy:
  monthly_rent_max: 15000
cache:
  type: memory
  market_rent_ttl: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "playwright", cfg.Acquire.Engine)
	assert.Equal(t, 250, cfg.Acquire.MinHTTPChars)
	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Acquire.MinRenderChars)
	assert.Equal(t, 15000.0, cfg.Policy.MonthlyRentMax)
	assert.Equal(t, 100.0, cfg.Policy.MonthlyRentMin)
	assert.Equal(t, 2*time.Hour, cfg.Cache.MarketRentTTL)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.ModelEnabled())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("acquire: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown engine", func(c *Config) { c.Acquire.Engine = "lynx" }, true},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, true},
		{"redis without url", func(c *Config) { c.Cache.Type = "redis" }, true},
		{"redis with url", func(c *Config) {
			c.Cache.Type = "redis"
			c.Cache.RedisURL = "redis://localhost:6379/0"
		}, false},
		{"inverted monthly bounds", func(c *Config) { c.Policy.MonthlyRentMin = 30000 }, true},
		{"inverted scan bounds", func(c *Config) { c.Policy.ScannedValueMin = 30 }, true},
		{"band out of range", func(c *Config) { c.Policy.SingleValueBand = 1.5 }, true},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
