package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/biblecomputer/bible/internal/verify"
)

// BuildVerifyCmd implements 'build-verify': a native build of the standalone
// verification binary from its own source tree.
type BuildVerifyCmd struct{}

func (v *BuildVerifyCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &verify.Builder{
		CrateDir:   cfg.Project.VerifyCrate,
		CorpusFile: cfg.Project.CorpusFile,
		CargoBin:   cfg.Tools.Cargo,
		CargoHome:  cfg.Cache.Home,
		TargetDir:  filepath.Join(cfg.Cache.Dir, "verify-target"),
	}
	digest, err := b.Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("Verifier ready", "signature", digest)
	return nil
}
