// Package commands defines the biblebuild CLI surface. Each command is a
// kong struct with a Run method; shared wiring lives here.
package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"github.com/biblecomputer/bible/internal/config"
	"github.com/biblecomputer/bible/internal/depcache"
	"github.com/biblecomputer/bible/internal/history"
	"github.com/biblecomputer/bible/internal/pipeline"
)

// timeRounding trims sub-millisecond noise from logged durations.
const timeRounding = time.Millisecond

// Global carries state shared across subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command definition with global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"biblebuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build       BuildCmd       `cmd:"" help:"Build the web client: compile to wasm, generate styles, and publish the bundle"`
	Check       CheckCmd       `cmd:"" help:"Run lint and format gates on the client crate without building"`
	BuildVerify BuildVerifyCmd `cmd:"" name:"build-verify" help:"Build the standalone text verification binary"`
	Dev         DevCmd         `cmd:"" help:"Run the development server with rebuild-on-change and live reload"`
	Pin         PinCmd         `cmd:"" help:"Inspect and verify the pinned external tools"`
	Clean       CleanCmd       `cmd:"" help:"Remove build working directories and caches"`
}

// AfterApply runs after flag parsing; sets up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	config.LoadDotenv()
	return config.Load(c.Config)
}

func openCacheStore(cfg *config.Config) (*depcache.Store, error) {
	return depcache.Open(cfg.Cache.Dir)
}

// recordHistory appends the report to the build history database. History is
// observability only and never fails a command.
func recordHistory(cfg *config.Config, report *pipeline.Report) {
	store, err := history.Open(historyPath(cfg))
	if err != nil {
		slog.Debug("build history unavailable", "error", err)
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Append(ctx, report); err != nil {
		slog.Debug("build history append failed", "error", err)
	}
}

func historyPath(cfg *config.Config) string {
	return filepath.Join(cfg.Cache.Dir, "history.db")
}
