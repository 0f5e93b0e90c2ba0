package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "http://api:9090", "-t", "tok", "-d", "x.db", "-n", "8", "-r", "5", "-w", "250", "-l", "debug"},
			expected: &Config{
				APIBaseURL: "http://api:9090", AccessToken: "tok", DatabaseDSN: "x.db", MaxConcurrentUploads: 8,
				RequestTimeout: 5 * time.Second, WatchInterval: 250 * time.Millisecond, LogLevel: "debug",
			}},
		{name: "foreign flags are ignored", args: []string{"cmd", "-x", "1", "-a", "http://api", "--other=2"},
			expected: &Config{APIBaseURL: "http://api"}},
		{name: "incorrect timeout", args: []string{"cmd", "-r", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
