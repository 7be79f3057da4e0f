package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables recognized by the pipeline. Each overrides the
// corresponding config field so sandboxed builds can relocate working state
// without editing the config file.
const (
	EnvCacheDir = "BIBLEBUILD_CACHE_DIR"
	EnvHome     = "BIBLEBUILD_HOME"
	EnvDist     = "BIBLEBUILD_DIST"
)

// LoadDotenv loads a .env file from the working directory if present.
// A missing file is not an error.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("dotenv load skipped", "error", err)
		}
		return
	}
	slog.Debug("Loaded environment overrides from .env")
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv(EnvHome); v != "" {
		c.Cache.Home = v
	}
	if v := os.Getenv(EnvDist); v != "" {
		c.Output.Dist = v
	}
}
