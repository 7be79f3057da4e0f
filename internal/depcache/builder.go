package depcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/biblecomputer/bible/internal/logfields"
	"github.com/biblecomputer/bible/internal/sourceset"
	"github.com/biblecomputer/bible/internal/toolchain"
)

// Runner compiles a staged dependency crate. Implemented by
// toolchain.Cargo; tests substitute a fake.
type Runner interface {
	Build(ctx context.Context, target toolchain.Target) error
}

// Builder produces DependencyArtifactCache entries. The project's own code
// is never compiled here: the manifests are staged into a stub crate so
// cargo resolves and compiles third-party dependencies only.
type Builder struct {
	Store    *Store
	CacheDir string
	// NewRunner constructs the compiler for a staged crate directory with
	// its artifact directory pinned. Tests inject a fake.
	NewRunner func(crateDir, targetDir string) Runner
}

// NewBuilder wires a Builder over the given store using real cargo runs.
func NewBuilder(store *Store, cacheDir, cargoBin, cargoHome string) *Builder {
	return &Builder{
		Store:    store,
		CacheDir: cacheDir,
		NewRunner: func(crateDir, targetDir string) Runner {
			c := toolchain.NewCargo(crateDir, cargoHome, targetDir)
			c.Bin = cargoBin
			return c
		},
	}
}

// Ensure returns a valid cache entry for (target, manifest digest),
// compiling dependencies on a miss. A hit whose artifacts survived is
// reused without any compilation.
func (b *Builder) Ensure(ctx context.Context, target toolchain.Target, srcs *sourceset.SourceSet, buildID string) (*Entry, error) {
	manifests := srcs.ManifestOnly()
	if len(manifests.Files) == 0 {
		return nil, fmt.Errorf("no dependency manifest found under %s", srcs.Root)
	}
	digest := manifests.Digest()
	key := Key(target, digest)

	if e, ok, err := b.Store.Get(key); err != nil {
		return nil, err
	} else if ok {
		if err := e.Validate(target, digest); err == nil {
			slog.Info("Dependency cache hit", logfields.Target(string(target)), "key", key)
			b.Store.Touch(key)
			return e, nil
		}
		slog.Warn("Dependency cache entry invalid, rebuilding", "key", key)
	}

	slog.Info("Dependency cache miss, compiling dependencies", logfields.Target(string(target)), "manifest_digest", digest[:12])
	artifactDir := b.Store.ArtifactDir(key)
	crateDir, err := b.stageStubCrate(srcs, manifests, key)
	if err != nil {
		return nil, err
	}

	runner := b.NewRunner(crateDir, artifactDir)
	if err := runner.Build(ctx, target); err != nil {
		// Leave no half-populated entry behind.
		_ = os.RemoveAll(artifactDir)
		return nil, fmt.Errorf("dependency build (%s): %w", target, err)
	}

	e := &Entry{
		Key:            key,
		Target:         string(target),
		ManifestDigest: digest,
		Path:           artifactDir,
		BuildID:        buildID,
		CreatedAt:      time.Now(),
		LastUsed:       time.Now(),
	}
	if err := b.Store.Put(e); err != nil {
		return nil, err
	}
	return e, nil
}

// stageStubCrate copies the real manifests next to placeholder sources so a
// cargo build resolves and compiles every third-party dependency without
// touching the application code.
func (b *Builder) stageStubCrate(srcs *sourceset.SourceSet, manifests *sourceset.SourceSet, key string) (string, error) {
	crateDir := filepath.Join(b.CacheDir, "stage", key)
	if err := os.RemoveAll(crateDir); err != nil {
		return "", fmt.Errorf("clear stage dir: %w", err)
	}
	for _, f := range manifests.Files {
		src := filepath.Join(srcs.Root, filepath.FromSlash(f.Path))
		dst := filepath.Join(crateDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return "", fmt.Errorf("stage manifest dir: %w", err)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return "", fmt.Errorf("read manifest %s: %w", f.Path, err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return "", fmt.Errorf("stage manifest %s: %w", f.Path, err)
		}
	}
	stubs := map[string]string{
		filepath.Join("src", "lib.rs"):  "",
		filepath.Join("src", "main.rs"): "fn main() {}\n",
	}
	for rel, content := range stubs {
		path := filepath.Join(crateDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return "", fmt.Errorf("stage stub dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("stage stub %s: %w", rel, err)
		}
	}
	return crateDir, nil
}
