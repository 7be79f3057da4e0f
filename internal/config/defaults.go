package config

import "path/filepath"

// applyDefaults fills unset fields relative to the config file location.
func (c *Config) applyDefaults(baseDir string) {
	if c.Project.Root == "" {
		c.Project.Root = baseDir
	}
	if c.Project.Manifest == "" {
		c.Project.Manifest = filepath.Join(c.Project.Root, "Cargo.toml")
	}
	if c.Project.StyleEntry == "" {
		c.Project.StyleEntry = filepath.Join(c.Project.Root, "input.css")
	}
	if c.Project.StyleConfig == "" {
		c.Project.StyleConfig = filepath.Join(c.Project.Root, "tailwind.config.js")
	}
	if c.Project.HTMLEntry == "" {
		c.Project.HTMLEntry = filepath.Join(c.Project.Root, "index.html")
	}
	if c.Project.AssetsDir == "" {
		c.Project.AssetsDir = filepath.Join(c.Project.Root, "assets")
	}
	if c.Output.Dir == "" {
		c.Output.Dir = filepath.Join(c.Project.Root, "build")
	}
	if c.Output.Dist == "" {
		c.Output.Dist = filepath.Join(c.Project.Root, "dist")
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.Project.Root, ".biblebuild", "cache")
	}
	if c.Cache.Home == "" {
		c.Cache.Home = filepath.Join(c.Project.Root, ".biblebuild", "home")
	}
	if c.Tools.Cargo == "" {
		c.Tools.Cargo = "cargo"
	}
	if c.Tools.Tailwind == "" {
		c.Tools.Tailwind = "tailwindcss"
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = 8080
	}
	if c.Dev.DebounceMS == 0 {
		c.Dev.DebounceMS = 150
	}
	if c.Dev.GCInterval == "" {
		c.Dev.GCInterval = "30m"
	}
}
