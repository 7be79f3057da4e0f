package commands

import (
	"fmt"
	"log/slog"
	"os"
)

// CleanCmd removes build working directories and caches. The published
// bundle survives unless --dist is given.
type CleanCmd struct {
	Dist bool `help:"Also remove the published bundle"`
}

func (c *CleanCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	targets := []string{cfg.Output.Dir, cfg.Cache.Dir}
	if c.Dist {
		targets = append(targets, cfg.Output.Dist)
	}
	for _, dir := range targets {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
		slog.Info("Removed", "dir", dir)
	}
	return nil
}
