package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/biblecomputer/bible/internal/logfields"
	"github.com/biblecomputer/bible/internal/pipeline"
)

// BuildCmd implements the 'build' command: the full client pipeline from
// source selection to the atomically published bundle.
type BuildCmd struct {
	Output    string `short:"o" help:"Publish the bundle to this directory instead of the configured dist"`
	Compress  bool   `help:"Minify HTML and CSS in the published bundle"`
	SkipCache bool   `name:"skip-cache" help:"Bypass the dependency cache and compile everything fresh"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	store, err := openCacheStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cb := pipeline.NewClientBuild(cfg, store)
	cb.Output = b.Output
	cb.Compress = b.Compress
	cb.SkipCache = b.SkipCache

	report, runErr := cb.Run(ctx)
	_ = os.MkdirAll(cfg.Output.Dir, 0o755)
	if perr := report.Persist(cfg.Output.Dir); perr != nil {
		slog.Debug("build report not persisted", "error", perr)
	}
	recordHistory(cfg, report)

	if runErr != nil {
		return fmt.Errorf("build failed: %w", runErr)
	}
	dist := b.Output
	if dist == "" {
		dist = cfg.Output.Dist
	}
	slog.Info("Build published",
		logfields.BuildID(report.ID),
		logfields.Path(dist),
		logfields.Signature(report.Signature),
		logfields.Outcome(string(report.Outcome)),
		"duration", report.Duration().Round(timeRounding))
	return nil
}
