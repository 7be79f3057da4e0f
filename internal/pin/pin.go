// Package pin resolves external code-generation tools by exact version and
// verifies them by content hash before building. An unpinned or tampered
// glue-code generator could silently emit incompatible bindings, so both
// the tool source tree and its locked dependency set are checked against
// declared hashes; a mismatch in either is fatal.
package pin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/biblecomputer/bible/internal/config"
	"github.com/biblecomputer/bible/internal/logfields"
	"github.com/biblecomputer/bible/internal/toolchain"
)

// ErrHashMismatch indicates a fetched artifact failed integrity
// verification. It is fatal; the fetch is discarded so no partially
// verified tree remains usable.
var ErrHashMismatch = errors.New("pinned tool hash mismatch")

// Pinner acquires and builds pinned tools under an isolated cache.
type Pinner struct {
	CacheDir string
	// Clone fetches the tool source at an exact version tag. Defaults to a
	// shallow go-git clone; tests substitute a local copy.
	Clone func(ctx context.Context, url, tag, dst string) error
	// Install compiles the verified source into rootDir/bin. Defaults to
	// cargo install with a pinned CARGO_HOME.
	Install func(ctx context.Context, srcDir, rootDir string) error
}

// NewPinner wires a Pinner with real fetch and build implementations.
func NewPinner(cacheDir, cargoBin, cargoHome string) *Pinner {
	return &Pinner{
		CacheDir: cacheDir,
		Clone:    gitClone,
		Install: func(ctx context.Context, srcDir, rootDir string) error {
			c := toolchain.NewCargo(srcDir, cargoHome, filepath.Join(rootDir, "target"))
			c.Bin = cargoBin
			return c.Install(ctx, srcDir, rootDir)
		},
	}
}

// BinaryPath returns where the pinned tool's binary lands once built.
func (p *Pinner) BinaryPath(pin config.ToolPin) string {
	return filepath.Join(p.toolRoot(pin), "bin", pin.Name)
}

func (p *Pinner) toolRoot(pin config.ToolPin) string {
	return filepath.Join(p.CacheDir, "tools", pin.Name+"-"+pin.Version)
}

func (p *Pinner) srcDir(pin config.ToolPin) string {
	return filepath.Join(p.CacheDir, "tools", "src", pin.Name+"-"+pin.Version)
}

// Ensure fetches, verifies, and builds the pinned tool, returning the path
// to its binary. A previously built binary whose recorded hashes match the
// pin is reused without fetching.
func (p *Pinner) Ensure(ctx context.Context, pin config.ToolPin) (string, error) {
	bin := p.BinaryPath(pin)
	if p.builtMatches(pin) {
		slog.Debug("Pinned tool already built", logfields.Tool(pin.Name), "version", pin.Version)
		return bin, nil
	}

	if err := p.Verify(ctx, pin); err != nil {
		return "", err
	}

	root := p.toolRoot(pin)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return "", fmt.Errorf("create tool root: %w", err)
	}
	slog.Info("Building pinned tool", logfields.Tool(pin.Name), "version", pin.Version)
	if err := p.Install(ctx, p.srcDir(pin), root); err != nil {
		return "", fmt.Errorf("build pinned tool %s: %w", pin.Name, err)
	}
	if _, err := os.Stat(bin); err != nil {
		return "", fmt.Errorf("pinned tool %s built but binary missing at %s: %w", pin.Name, bin, err)
	}
	if err := p.writeMarker(pin); err != nil {
		return "", err
	}
	return bin, nil
}

// Verify fetches the tool source (if not already fetched) and checks both
// declared hashes. On mismatch the fetched tree is removed so nothing
// partially verified survives.
func (p *Pinner) Verify(ctx context.Context, pin config.ToolPin) error {
	src := p.srcDir(pin)
	if _, err := os.Stat(src); err != nil {
		if err := os.MkdirAll(filepath.Dir(src), 0o750); err != nil {
			return fmt.Errorf("create tool source dir: %w", err)
		}
		slog.Info("Fetching pinned tool source", logfields.Tool(pin.Name), "version", pin.Version, "repo", pin.Repo)
		if err := p.Clone(ctx, pin.Repo, pin.Version, src); err != nil {
			_ = os.RemoveAll(src)
			return fmt.Errorf("fetch %s %s: %w", pin.Name, pin.Version, err)
		}
	}

	treeHash, err := TreeHash(src)
	if err != nil {
		return fmt.Errorf("hash tool source: %w", err)
	}
	if treeHash != pin.SourceHash {
		_ = os.RemoveAll(src)
		return fmt.Errorf("%w: %s source tree: declared %.12s, got %.12s", ErrHashMismatch, pin.Name, pin.SourceHash, treeHash)
	}

	lockHash, err := FileHash(filepath.Join(src, "Cargo.lock"))
	if err != nil {
		_ = os.RemoveAll(src)
		return fmt.Errorf("hash tool lockfile: %w", err)
	}
	if lockHash != pin.LockHash {
		_ = os.RemoveAll(src)
		return fmt.Errorf("%w: %s dependency lock: declared %.12s, got %.12s", ErrHashMismatch, pin.Name, pin.LockHash, lockHash)
	}

	slog.Debug("Pinned tool verified", logfields.Tool(pin.Name), "version", pin.Version)
	return nil
}

// builtMatches reports whether a prior build of this pin exists with
// matching recorded hashes.
func (p *Pinner) builtMatches(pin config.ToolPin) bool {
	if _, err := os.Stat(p.BinaryPath(pin)); err != nil {
		return false
	}
	data, err := os.ReadFile(p.markerPath(pin))
	if err != nil {
		return false
	}
	return string(data) == pin.SourceHash+"\n"+pin.LockHash+"\n"
}

func (p *Pinner) markerPath(pin config.ToolPin) string {
	return filepath.Join(p.toolRoot(pin), ".verified")
}

func (p *Pinner) writeMarker(pin config.ToolPin) error {
	content := pin.SourceHash + "\n" + pin.LockHash + "\n"
	if err := os.WriteFile(p.markerPath(pin), []byte(content), 0o644); err != nil {
		return fmt.Errorf("record verification marker: %w", err)
	}
	return nil
}

func gitClone(ctx context.Context, url, tag, dst string) error {
	_, err := git.PlainCloneContext(ctx, dst, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewTagReferenceName(tag),
		SingleBranch:  true,
		Depth:         1,
	})
	return err
}
