package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFilesGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadLaterFileWins(t *testing.T) {
	dir := t.TempDir()
	user := writeFile(t, dir, "user.toml", `
concurrency = 2
formats = ["webp", "jpeg"]
metric = "ssimulacra2"

[cache]
enabled = false
max_entries = 10
`)
	local := writeFile(t, dir, "local.toml", `
concurrency = 6
log_level = "debug"

[cache]
persistent = true
`)

	cfg, err := Load(user, local)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Concurrency)
	assert.Equal(t, []string{"webp", "jpeg"}, cfg.Formats)
	assert.Equal(t, "ssimulacra2", cfg.Metric)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 10, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Cache.Persistent)
	assert.Equal(t, int64(256<<20), cfg.Cache.MaxBytes, "untouched keys keep defaults")
	assert.Equal(t, 12, cfg.MaxSteps)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.toml", `metric = "psnr"`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "psnr")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.toml", `concurrency = [`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }, false},
		{"zero steps", func(c *Config) { c.MaxSteps = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"negative cache", func(c *Config) { c.Cache.MaxBytes = -5 }, false},
		{"empty metric defaults", func(c *Config) { c.Metric = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := Validate(c)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}
	assert.Equal(t, filepath.Join(home, "cache.db"), expandPath("~/cache.db"))
	assert.Equal(t, "/tmp/x.db", expandPath("/tmp/x.db"))
	assert.Equal(t, "", expandPath(""))
}
