package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/biblecomputer/bible/internal/history"
	"github.com/biblecomputer/bible/internal/pin"
)

// PinCmd groups the pinned-tool subcommands.
type PinCmd struct {
	Verify PinVerifyCmd `cmd:"" help:"Fetch each pinned tool and verify both declared hashes"`
	Show   PinShowCmd   `cmd:"" default:"withargs" help:"List the declared pins and their build state"`
}

// PinVerifyCmd fetches and hash-checks every declared pin without building
// the client.
type PinVerifyCmd struct{}

func (p *PinVerifyCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Tools.Pins) == 0 {
		return fmt.Errorf("no pinned tools declared in %s", root.Config)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pinner := pin.NewPinner(cfg.Cache.Dir, cfg.Tools.Cargo, cfg.Cache.Home)
	for _, tp := range cfg.Tools.Pins {
		if err := pinner.Verify(ctx, tp); err != nil {
			return err
		}
		fmt.Printf("%s %s: verified\n", tp.Name, tp.Version)
	}
	return nil
}

// PinShowCmd lists the declared pins, their build state, and the last
// successful build signature when history is available.
type PinShowCmd struct{}

func (p *PinShowCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	pinner := pin.NewPinner(cfg.Cache.Dir, cfg.Tools.Cargo, cfg.Cache.Home)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tVERSION\tSOURCE HASH\tSTATE")
	for _, tp := range cfg.Tools.Pins {
		state := "not built"
		if _, err := os.Stat(pinner.BinaryPath(tp)); err == nil {
			state = "built"
		}
		fmt.Fprintf(w, "%s\t%s\t%.12s\t%s\n", tp.Name, tp.Version, tp.SourceHash, state)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if store, herr := history.Open(historyPath(cfg)); herr == nil {
		defer store.Close()
		if last, lerr := store.LastSuccess(context.Background(), "build"); lerr == nil && last != nil {
			fmt.Printf("\nlast successful build: %s (%.12s) at %s\n",
				last.ID, last.Signature, last.Finished.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
