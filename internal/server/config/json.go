package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophsubmit/internal/flagx"
	"github.com/dmitrijs2005/gophsubmit/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for the token validity, which allows parsing both
// string values such as "15m" and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	PublicBaseURL       string         `json:"public_base_url"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	UploadTokenValidity timex.Duration `json:"upload_token_validity"`
	MaxUploadSize       int64          `json:"max_upload_size"`
	SpoolDir            string         `json:"spool_dir"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	LogLevel            string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file given by -c or
// -config into config. Fields absent from the file keep their value.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	path := flagx.JsonConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.UploadTokenValidity.Duration > 0 {
		config.UploadTokenValidity = c.UploadTokenValidity.Duration
	}
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	setString(&config.SpoolDir, c.SpoolDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
