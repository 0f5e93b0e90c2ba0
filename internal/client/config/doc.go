// Package config loads runtime configuration for the gophsubmit CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
//	{
//	  "api_base_url": "http://127.0.0.1:8080",
//	  "access_token": "",
//	  "database_dsn": "gophsubmit.db",
//	  "max_concurrent_uploads": 4,
//	  "request_timeout": "30s",
//	  "watch_interval": "500ms",
//	  "log_level": "warn"
//	}
package config
