package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level build configuration loaded from biblebuild.yaml.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Output  OutputConfig  `yaml:"output"`
	Cache   CacheConfig   `yaml:"cache"`
	Tools   ToolsConfig   `yaml:"tools"`
	Dev     DevConfig     `yaml:"dev"`
}

// ProjectConfig describes the source layout of the web client crate.
type ProjectConfig struct {
	Root        string `yaml:"root"`
	Manifest    string `yaml:"manifest"`     // Cargo.toml of the client crate
	StyleEntry  string `yaml:"style_entry"`  // input stylesheet for the CSS generator
	StyleConfig string `yaml:"style_config"` // tailwind configuration file
	HTMLEntry   string `yaml:"html_entry"`   // entry page template
	AssetsDir   string `yaml:"assets_dir"`   // optional; may be absent on disk
	VerifyCrate string `yaml:"verify_crate"` // root of the standalone verifier crate
	CorpusFile  string `yaml:"corpus_file"`  // optional reference text for the verifier
}

// OutputConfig controls where finished artifacts land.
type OutputConfig struct {
	Dir  string `yaml:"dir"`  // working output for intermediate bundles
	Dist string `yaml:"dist"` // stable published location
}

// CacheConfig pins the working directories used during builds so they are
// never inherited from the ambient environment.
type CacheConfig struct {
	Dir  string `yaml:"dir"`  // dependency cache and tool build cache
	Home string `yaml:"home"` // isolated CARGO_HOME for reproducible tool state
}

// ToolsConfig names the external binaries and the pinned code generators.
type ToolsConfig struct {
	Cargo    string    `yaml:"cargo"`
	Tailwind string    `yaml:"tailwind"`
	Pins     []ToolPin `yaml:"pins"`
}

// ToolPin identifies an external code-generation tool by exact version and
// two content hashes: one over the fetched source tree and one over its
// locked dependency set. Both must match or the build fails.
type ToolPin struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	Repo       string `yaml:"repo"`
	SourceHash string `yaml:"source_hash"`
	LockHash   string `yaml:"lock_hash"`
}

// DevConfig configures the interactive development supervisor.
type DevConfig struct {
	Port       int    `yaml:"port"`
	DebounceMS int    `yaml:"debounce_ms"`
	MetricsOn  bool   `yaml:"metrics"`
	GCInterval string `yaml:"gc_interval"` // duration string; empty disables the sweep
}

// Load reads configuration from the given path, applies defaults and the
// environment overlay, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that defaulting cannot repair. Every path has
// a default relative to the project root; filesystem existence is checked
// later by the stages that consume each one, so that optional inputs
// (assets dir, corpus file) stay optional. Pin declarations have no
// defaults and must be complete.
func (c *Config) Validate() error {
	for i, pin := range c.Tools.Pins {
		if pin.Name == "" || pin.Version == "" {
			return fmt.Errorf("config: tools.pins[%d] requires name and version", i)
		}
		if pin.SourceHash == "" || pin.LockHash == "" {
			return fmt.Errorf("config: tools.pins[%d] (%s) requires source_hash and lock_hash", i, pin.Name)
		}
	}
	return nil
}

// Pin returns the pinned tool with the given name, if declared.
func (c *Config) Pin(name string) (ToolPin, bool) {
	for _, p := range c.Tools.Pins {
		if p.Name == name {
			return p, true
		}
	}
	return ToolPin{}, false
}
