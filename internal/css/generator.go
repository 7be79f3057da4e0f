// Package css integrates the utility-CSS compiler into the pipeline. The
// tool is external; this package owns invocation, preconditions, and the
// watch lifecycle.
package css

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrMissingInput indicates the stylesheet entry or config file is absent.
var ErrMissingInput = errors.New("css input missing")

// Generator runs the stylesheet compiler against one entry file and one
// configuration file, producing a single output stylesheet.
type Generator struct {
	Binary string // tailwind binary
	Entry  string // input stylesheet
	Config string // tool configuration file
	Output string // generated stylesheet
}

// NewGenerator constructs a generator; binary defaults to "tailwindcss".
func NewGenerator(binary, entry, config, output string) *Generator {
	if binary == "" {
		binary = "tailwindcss"
	}
	return &Generator{Binary: binary, Entry: entry, Config: config, Output: output}
}

func (g *Generator) checkInputs() error {
	if _, err := os.Stat(g.Entry); err != nil {
		return fmt.Errorf("%w: stylesheet entry %s: %v", ErrMissingInput, g.Entry, err)
	}
	if _, err := os.Stat(g.Config); err != nil {
		return fmt.Errorf("%w: style config %s: %v", ErrMissingInput, g.Config, err)
	}
	return nil
}

func (g *Generator) args(watch bool) []string {
	args := []string{"-i", g.Entry, "-o", g.Output, "-c", g.Config}
	if watch {
		args = append(args, "--watch")
	}
	return args
}

// Generate runs one compilation pass. The output file is guaranteed to
// exist afterwards so consumers (the dev server in particular) can rely on
// it before the watcher produces its first rebuild.
func (g *Generator) Generate(ctx context.Context) error {
	if err := g.checkInputs(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.Output), 0o755); err != nil {
		return fmt.Errorf("create stylesheet output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.Binary, g.args(false)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	slog.Debug("css generate", "entry", g.Entry, "output", g.Output)
	if err := cmd.Run(); err != nil {
		if msg := stderr.String(); msg != "" {
			return fmt.Errorf("stylesheet generation: %w: %s", err, msg)
		}
		return fmt.Errorf("stylesheet generation: %w", err)
	}
	if _, err := os.Stat(g.Output); err != nil {
		return fmt.Errorf("stylesheet tool produced no output at %s: %w", g.Output, err)
	}
	return nil
}

// Watch runs the compiler in watch mode until the context is cancelled.
// Cancellation is the normal exit: it terminates the child process and
// returns nil. Any other process exit is an error.
func (g *Generator) Watch(ctx context.Context) error {
	if err := g.checkInputs(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.Output), 0o755); err != nil {
		return fmt.Errorf("create stylesheet output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.Binary, g.args(true)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	slog.Info("Style watcher starting", "entry", g.Entry, "output", g.Output)

	err := cmd.Run()
	if ctx.Err() != nil {
		slog.Info("Style watcher stopped")
		return nil
	}
	if err != nil {
		if msg := stderr.String(); msg != "" {
			return fmt.Errorf("style watcher exited: %w: %s", err, msg)
		}
		return fmt.Errorf("style watcher exited: %w", err)
	}
	return nil
}
