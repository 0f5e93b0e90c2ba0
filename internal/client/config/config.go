package config

import "time"

// Config holds runtime settings for the gophsubmit CLI.
//
// Fields:
//   - APIBaseURL: base URL of the submissions API.
//   - AccessToken: optional bearer token sent to the API.
//   - DatabaseDSN: path of the local SQLite store.
//   - MaxConcurrentUploads: uploads running at the same time.
//   - RequestTimeout: timeout of JSON API calls (uploads are not limited).
//   - WatchInterval: refresh period of the watch command.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	APIBaseURL           string
	AccessToken          string
	DatabaseDSN          string
	MaxConcurrentUploads int64
	RequestTimeout       time.Duration
	WatchInterval        time.Duration
	LogLevel             string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.AccessToken = ""
	c.DatabaseDSN = "gophsubmit.db"
	c.MaxConcurrentUploads = 4
	c.RequestTimeout = 30 * time.Second
	c.WatchInterval = 500 * time.Millisecond
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
