package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "biblebuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
project:
  manifest: Cargo.toml
  style_entry: input.css
  html_entry: index.html
output:
  dist: dist
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Dir(path), cfg.Project.Root)
	assert.Equal(t, "cargo", cfg.Tools.Cargo)
	assert.Equal(t, "tailwindcss", cfg.Tools.Tailwind)
	assert.Equal(t, 8080, cfg.Dev.Port)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.NotEmpty(t, cfg.Cache.Home)
}

func TestLoadEmptyConfigIsComplete(t *testing.T) {
	// Every path defaults relative to the config file location, so an empty
	// file still loads and validates.
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	root := filepath.Dir(path)
	assert.Equal(t, filepath.Join(root, "Cargo.toml"), cfg.Project.Manifest)
	assert.Equal(t, filepath.Join(root, "input.css"), cfg.Project.StyleEntry)
	assert.Equal(t, filepath.Join(root, "index.html"), cfg.Project.HTMLEntry)
	assert.Equal(t, filepath.Join(root, "dist"), cfg.Output.Dist)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsIncompletePin(t *testing.T) {
	path := writeConfig(t, `
project:
  manifest: Cargo.toml
  style_entry: input.css
  html_entry: index.html
output:
  dist: dist
tools:
  pins:
    - name: wasm-bindgen-cli
      version: 0.2.100
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_hash")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvCacheDir, "/tmp/override-cache")
	t.Setenv(EnvDist, "/tmp/override-dist")

	path := writeConfig(t, `
project:
  manifest: Cargo.toml
  style_entry: input.css
  html_entry: index.html
output:
  dist: dist
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override-cache", cfg.Cache.Dir)
	assert.Equal(t, "/tmp/override-dist", cfg.Output.Dist)
}

func TestPinLookup(t *testing.T) {
	cfg := &Config{Tools: ToolsConfig{Pins: []ToolPin{{
		Name: "wasm-bindgen-cli", Version: "0.2.100",
		SourceHash: "aa", LockHash: "bb",
	}}}}

	pin, ok := cfg.Pin("wasm-bindgen-cli")
	require.True(t, ok)
	assert.Equal(t, "0.2.100", pin.Version)

	_, ok = cfg.Pin("trunk")
	assert.False(t, ok)
}
