// Package verify builds the standalone verification binary. The verifier is
// a native crate with its own source tree, compiled separately from the web
// client so a broken client never blocks text verification.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/biblecomputer/bible/internal/logfields"
	"github.com/biblecomputer/bible/internal/sourceset"
	"github.com/biblecomputer/bible/internal/toolchain"
)

// ErrNoCrate indicates the verifier crate root is missing or not configured.
var ErrNoCrate = errors.New("verifier crate not found")

// Builder compiles the verifier crate for the host platform.
type Builder struct {
	CrateDir   string // root of the verifier crate
	CorpusFile string // optional reference text; absence is logged, not fatal
	CargoBin   string
	CargoHome  string
	TargetDir  string
}

// Run selects the verifier's sources, checks the optional corpus, and builds
// the crate natively. The returned digest identifies the verifier source set.
func (b *Builder) Run(ctx context.Context) (string, error) {
	if b.CrateDir == "" {
		return "", ErrNoCrate
	}
	if _, err := os.Stat(b.CrateDir); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNoCrate, b.CrateDir, err)
	}

	set, err := sourceset.NewSelector(b.CrateDir).Select()
	if err != nil {
		return "", fmt.Errorf("select verifier sources: %w", err)
	}
	digest := set.Digest()

	if b.CorpusFile != "" {
		if _, err := os.Stat(b.CorpusFile); err != nil {
			slog.Warn("verification corpus not found, verifier runs without reference text",
				logfields.Path(b.CorpusFile))
		}
	}

	cargo := toolchain.NewCargo(b.CrateDir, b.CargoHome, b.TargetDir)
	if b.CargoBin != "" {
		cargo.Bin = b.CargoBin
	}
	if err := cargo.Build(ctx, toolchain.TargetNative); err != nil {
		return "", fmt.Errorf("build verifier: %w", err)
	}

	slog.Info("verifier built", logfields.Path(b.CrateDir), logfields.Signature(digest))
	return digest, nil
}
