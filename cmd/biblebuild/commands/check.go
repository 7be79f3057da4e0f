package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/biblecomputer/bible/internal/pipeline"
)

// CheckCmd implements the 'check' command: clippy with warnings denied and
// rustfmt in check mode. No artifact is produced.
type CheckCmd struct{}

func (c *CheckCmd) Run(_ *Global, root *CLI) error {
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

	report, runErr := pipeline.Check(ctx, cfg, store, false)
	recordHistory(cfg, report)
	if runErr != nil {
		return fmt.Errorf("check failed: %w", runErr)
	}
	slog.Info("Checks passed", "duration", report.Duration().Round(timeRounding))
	return nil
}
