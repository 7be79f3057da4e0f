package verify

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStubCargo(t *testing.T, dir string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
	path := filepath.Join(dir, "cargo")
	script := "#!/bin/sh\nprintf '%s ' \"$@\" >> \"$(dirname \"$0\")/cargo-args.log\"\necho >> \"$(dirname \"$0\")/cargo-args.log\"\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeVerifierCrate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname = \"verifier\"\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.rs"), []byte("fn main() {}\n"), 0o644))
	return dir
}

func TestRunBuildsNatively(t *testing.T) {
	crate := writeVerifierCrate(t)
	binDir := t.TempDir()
	cargo := writeStubCargo(t, binDir, 0)

	b := &Builder{CrateDir: crate, CargoBin: cargo, TargetDir: t.TempDir()}
	digest, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, digest)

	log, err := os.ReadFile(filepath.Join(binDir, "cargo-args.log"))
	require.NoError(t, err)
	assert.Contains(t, string(log), "build --release")
	// Host build, no cross target.
	assert.NotContains(t, string(log), "--target")
}

func TestRunMissingCorpusIsNotFatal(t *testing.T) {
	crate := writeVerifierCrate(t)
	cargo := writeStubCargo(t, t.TempDir(), 0)

	b := &Builder{
		CrateDir:   crate,
		CorpusFile: filepath.Join(crate, "missing-corpus.json"),
		CargoBin:   cargo,
		TargetDir:  t.TempDir(),
	}
	_, err := b.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunMissingCrate(t *testing.T) {
	b := &Builder{CrateDir: filepath.Join(t.TempDir(), "nope")}
	_, err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoCrate)

	b = &Builder{}
	_, err = b.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoCrate)
}

func TestRunBuildFailure(t *testing.T) {
	crate := writeVerifierCrate(t)
	cargo := writeStubCargo(t, t.TempDir(), 1)

	b := &Builder{CrateDir: crate, CargoBin: cargo, TargetDir: t.TempDir()}
	_, err := b.Run(context.Background())
	assert.Error(t, err)
}
