package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-b string   public base URL
//	-d string   PostgreSQL DSN
//	-s string   upload token HMAC secret key
//	-t int      upload token validity, minutes
//	-m int      max upload size, bytes
//	-w string   spool directory
//	-u string   S3 root user
//	-p string   S3 root password
//	-k string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   log level
//
// Notes:
//   - Only the flags declared here are parsed (flagx.ParseKnown), so other
//     components can share the command line.
//   - The token validity is accepted in minutes and converted to a
//     time.Duration.
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.PublicBaseURL, "b", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	uploadTokenValidity := fs.Int("t", int(config.UploadTokenValidity.Minutes()), "upload token validity (in minutes)")

	fs.Int64Var(&config.MaxUploadSize, "m", config.MaxUploadSize, "max upload size (in bytes)")
	fs.StringVar(&config.SpoolDir, "w", config.SpoolDir, "spool directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "k", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level: debug, info, warn, error")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	config.UploadTokenValidity = time.Duration(*uploadTokenValidity) * time.Minute
}
