package flagx

import (
	"flag"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	server := []string{"-a", "--a", "-d", "--d", "-m", "--m"}
	config := []string{"-c", "--config"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"separate values", []string{"-a", ":8080", "-c", "server.json", "-d", "postgres://db"}, server, []string{"-a", ":8080", "-d", "postgres://db"}},
		{"equals form", []string{"--m=1048576", "-c=server.json"}, server, []string{"--m=1048576"}},
		{"value looking like a flag is not consumed", []string{"-c", "--config=alt.json"}, config, []string{"-c", "--config=alt.json"}},
		{"missing value at the end", []string{"-d"}, server, []string{"-d"}},
		{"positional and unknown flags dropped", []string{"watch", "s1", "-z", "9"}, server, []string{}},
		{"repeated flag kept in order", []string{"-a", ":1", "-a", ":2"}, server, []string{"-a", ":1", "-a", ":2"}},
		{"equals value may start with dashes", []string{"--config=--odd.json"}, config, []string{"--config=--odd.json"}},
		{"empty", []string{}, config, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJsonConfigPath(t *testing.T) {
	t.Run("short -c with value", func(t *testing.T) {
		assert.Equal(t, "/path/short.json", JsonConfigPath([]string{"-c", "/path/short.json"}))
	})

	t.Run("long -config with value", func(t *testing.T) {
		assert.Equal(t, "/path/long.json", JsonConfigPath([]string{"-config", "/path/long.json"}))
	})

	t.Run("unknown flags are ignored", func(t *testing.T) {
		assert.Empty(t, JsonConfigPath([]string{"-x", "1", "-y", "2"}))
	})

	t.Run("multiple flags, last wins", func(t *testing.T) {
		assert.Equal(t, "/path/2.json", JsonConfigPath([]string{"-c", "/path/1.json", "-config", "/path/2.json"}))
	})
}

func TestParseKnown_IgnoresForeignFlags(t *testing.T) {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	addr := fs.String("a", "default", "api address")
	workers := fs.Int("n", 1, "uploads")

	err := ParseKnown(fs, []string{"-c", "cfg.json", "-a", "http://api", "--n=4", "-z", "9"})
	require.NoError(t, err)
	assert.Equal(t, "http://api", *addr)
	assert.Equal(t, 4, *workers)
}

func TestNames(t *testing.T) {
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	fs.Bool("v", false, "")
	assert.Equal(t, []string{"-v", "--v"}, Names(fs))
}
