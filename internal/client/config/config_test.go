package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.APIBaseURL)
	assert.Equal(t, "", c.AccessToken)
	assert.Equal(t, "gophsubmit.db", c.DatabaseDSN)
	assert.Equal(t, int64(4), c.MaxConcurrentUploads)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, c.WatchInterval)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"api_base_url": "http://from-json",
		"database_dsn": "json.db",
	})
	os.Args = []string{"testbin", "-c", path, "-a", "http://from-flag"}

	cfg := LoadConfig()
	assert.Equal(t, "http://from-flag", cfg.APIBaseURL)
	assert.Equal(t, "json.db", cfg.DatabaseDSN)
}
