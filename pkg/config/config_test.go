package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOptions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "Gitea", cfg.AppName)
	assert.Equal(t, "0.0.0.0:3000", cfg.ListenAddress)
	assert.Equal(t, "http", cfg.Protocol)
	assert.Equal(t, "Info", cfg.GiteaLogLevel)
	assert.Equal(t, "linux", cfg.RunnerLabels)
	assert.NotEqual(t, cfg.GiteaUnit, cfg.RunnerUnit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysOptions(t *testing.T) {
	path := writeOptions(t, `
listen-address: "127.0.0.1:8080"
gitea-log-level: Debug
runner-labels: "linux,docker"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddress)
	assert.Equal(t, "Debug", cfg.GiteaLogLevel)
	assert.Equal(t, "linux,docker", cfg.RunnerLabels)
	// Untouched fields keep their defaults.
	assert.Equal(t, "/var/lib/gitea", cfg.DataDir)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeOptions(t, "listen-adress: \"127.0.0.1:8080\"\n")

	_, err := Load(path)
	assert.Error(t, err, "a typo must not silently fall back to defaults")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeOptions(t, "gitea-log-level: verbose\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gitea-log-level")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"bad listen address", func(c *Config) { c.ListenAddress = "3000" }, "listen-address"},
		{"bad log level", func(c *Config) { c.GiteaLogLevel = "Verbose" }, "gitea-log-level"},
		{"bad protocol", func(c *Config) { c.Protocol = "gopher" }, "protocol"},
		{"empty labels", func(c *Config) { c.RunnerLabels = "" }, "runner-labels"},
		{"blank label", func(c *Config) { c.RunnerLabels = "linux,,docker" }, "runner-labels"},
		{"relative data dir", func(c *Config) { c.DataDir = "gitea-data" }, "data-dir"},
		{"relative state dir", func(c *Config) { c.StateDir = "state" }, "state-dir"},
		{"empty unit name", func(c *Config) { c.GiteaUnit = "" }, "unit names"},
		{"colliding unit names", func(c *Config) { c.RunnerUnit = c.GiteaUnit }, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errHas)
		})
	}
}

func TestEffectiveRootURL(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"explicit root URL wins", func(c *Config) { c.RootURL = "https://git.example/" }, "https://git.example/"},
		{"wildcard host becomes localhost", func(c *Config) {}, "http://localhost:3000/"},
		{"concrete host kept", func(c *Config) { c.ListenAddress = "10.0.0.2:3000" }, "http://10.0.0.2:3000/"},
		{"protocol respected", func(c *Config) { c.Protocol = "https" }, "https://localhost:3000/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Equal(t, tt.want, cfg.EffectiveRootURL())
		})
	}
}

func TestConfigPaths(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/etc/gitea/app.ini", cfg.GiteaConfigPath())
	assert.Equal(t, "/etc/act_runner/config.yaml", cfg.RunnerConfigPath())
	assert.Equal(t, "3000", cfg.HTTPPort())
}
