package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   API base URL
//	-t string   API access token
//	-d string   SQLite database path
//	-n int      max concurrent uploads
//	-r int      API request timeout (seconds)
//	-w int      watch refresh interval (milliseconds)
//	-l string   log level
//
// Arguments that do not belong to these flags are ignored.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "API access token")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "local database path")
	fs.Int64Var(&cfg.MaxConcurrentUploads, "n", cfg.MaxConcurrentUploads, "max concurrent uploads")
	requestTimeout := fs.Int("r", int(cfg.RequestTimeout.Seconds()), "API request timeout (in seconds)")
	watchInterval := fs.Int("w", int(cfg.WatchInterval.Milliseconds()), "watch refresh interval (in milliseconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.WatchInterval = time.Duration(*watchInterval) * time.Millisecond
}
