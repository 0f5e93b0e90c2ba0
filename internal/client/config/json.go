package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophsubmit/internal/flagx"
	"github.com/dmitrijs2005/gophsubmit/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	APIBaseURL           string         `json:"api_base_url"`
	AccessToken          string         `json:"access_token"`
	DatabaseDSN          string         `json:"database_dsn"`
	MaxConcurrentUploads int64          `json:"max_concurrent_uploads"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	WatchInterval        timex.Duration `json:"watch_interval"`
	LogLevel             string         `json:"log_level"`
}

// parseJson overlays Config with the values present in the JSON file given
// by -c or -config. Fields missing from the file keep their current value.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.JsonConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.AccessToken != "" {
		cfg.AccessToken = jc.AccessToken
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.MaxConcurrentUploads > 0 {
		cfg.MaxConcurrentUploads = jc.MaxConcurrentUploads
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.WatchInterval.Duration > 0 {
		cfg.WatchInterval = jc.WatchInterval.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
