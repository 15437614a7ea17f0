package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test,
// standing in for t.Chdir which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Proxy.ProbeTimeout)
	assert.Equal(t, 2*time.Second, cfg.Proxy.LatencyThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Proxy.Cooldown)
	assert.Equal(t, 1, cfg.Proxy.MaxFailures)
	assert.Equal(t, 5*time.Minute, cfg.Proxy.CacheTTL)
	assert.Equal(t, "http://httpbin.org/ip", cfg.Proxy.TestURL)
	assert.Equal(t, 5*time.Minute, cfg.Bot.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Bot.EmptyPoolBackoff)
	assert.Equal(t, []string{"proxyscrape", "freeproxylist", "sslproxies"}, cfg.Scraper.Sources)
	assert.False(t, cfg.Notifier.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	chdir(t, dir)

	configFile := filepath.Join(dir, "config.yaml")
	content := `
proxy:
  max_failures: 3
  update_interval: 2m
bot:
  poll_interval: 10m
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Proxy.MaxFailures)
	assert.Equal(t, 2*time.Minute, cfg.Proxy.UpdateInterval)
	assert.Equal(t, 10*time.Minute, cfg.Bot.PollInterval)
	// Untouched values keep their defaults.
	assert.Equal(t, 3*time.Second, cfg.Proxy.ProbeTimeout)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	chdir(t, dir)

	configFile := filepath.Join(dir, "config.yaml")
	content := `
proxy:
  max_failures: 0
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	_, err := LoadConfig(configFile)
	assert.Error(t, err)
}

func TestLoadConfigRequiresTokenWhenNotifierEnabled(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	chdir(t, dir)

	configFile := filepath.Join(dir, "config.yaml")
	content := `
notifier:
  enabled: true
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	_, err := LoadConfig(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot token")
}

func TestTelegramEnvOverrides(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "424242")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Notifier.BotToken)
	assert.Contains(t, cfg.Notifier.ChatIDs, "424242")
}
