package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "none", cfg.Sandbox.NetworkMode)
	assert.Equal(t, 3600, cfg.Queue.JobTimeoutSeconds)
	assert.Equal(t, 90, cfg.Queue.ReviewTimeoutSeconds)
	assert.Equal(t, 25, cfg.Papers.MaxPDFSizeMB)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
sandbox:
  memory_limit: "512m"
  network_mode: bridge
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "512m", cfg.Sandbox.MemoryLimit)
	assert.Equal(t, "bridge", cfg.Sandbox.NetworkMode)
	// Untouched sections keep defaults.
	assert.Equal(t, "ARANDU_JOBS", cfg.Queue.Stream)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("ARANDU_CPU_LIMIT", "0.5")
	t.Setenv("ARANDU_NETWORK_MODE", "bridge")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Sandbox.CPULimit)
	assert.Equal(t, "bridge", cfg.Sandbox.NetworkMode)
}

func TestValidateRejectsUnsafeSandbox(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"root user", func(c *Config) { c.Sandbox.User = "root" }},
		{"uid zero", func(c *Config) { c.Sandbox.UID = 0 }},
		{"zero cpu", func(c *Config) { c.Sandbox.CPULimit = 0 }},
		{"empty memory", func(c *Config) { c.Sandbox.MemoryLimit = "" }},
		{"host network", func(c *Config) { c.Sandbox.NetworkMode = "host" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseMemoryLimit(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"2g", 2 << 30, true},
		{"512m", 512 << 20, true},
		{"64k", 64 << 10, true},
		{"1048576", 1048576, true},
		{"2G", 2 << 30, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-1g", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMemoryLimit(tc.in)
		if tc.ok {
			require.NoErrorf(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.Errorf(t, err, "input %q", tc.in)
		}
	}
}
