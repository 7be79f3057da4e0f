package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCargo writes a shell script standing in for the cargo binary. It
// records its arguments and environment to argsFile and exits with the
// given code.
func stubCargo(t *testing.T, exitCode int) (bin, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	bin = filepath.Join(dir, "cargo")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> " + argsFile + "\n" +
		"echo \"home=$CARGO_HOME target_dir=$CARGO_TARGET_DIR\" >> " + argsFile + "\n"
	if exitCode != 0 {
		script += "echo 'error: something denied' >&2\n"
	}
	script += "exit " + string(rune('0'+exitCode)) + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsFile
}

func TestBuildPassesTargetTripleAndEnv(t *testing.T) {
	bin, argsFile := stubCargo(t, 0)
	c := NewCargo(t.TempDir(), "/pinned/home", "/pinned/target")
	c.Bin = bin

	require.NoError(t, c.Build(context.Background(), TargetWasm))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "build --release --target wasm32-unknown-unknown")
	assert.Contains(t, string(data), "home=/pinned/home target_dir=/pinned/target")
}

func TestBuildNativeOmitsTriple(t *testing.T) {
	bin, argsFile := stubCargo(t, 0)
	c := NewCargo(t.TempDir(), "", "")
	c.Bin = bin

	require.NoError(t, c.Build(context.Background(), TargetNative))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "--target wasm32")
}

func TestClippyFailureIsLintError(t *testing.T) {
	bin, _ := stubCargo(t, 1)
	c := NewCargo(t.TempDir(), "", "")
	c.Bin = bin

	err := c.Clippy(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLint)
	// The tool's stderr message is carried in the error for diagnostics.
	assert.Contains(t, err.Error(), "denied")
}

func TestFmtCheckFailureIsFormatError(t *testing.T) {
	bin, _ := stubCargo(t, 1)
	c := NewCargo(t.TempDir(), "", "")
	c.Bin = bin

	assert.ErrorIs(t, c.FmtCheck(context.Background()), ErrFormat)
}

func TestMissingBinary(t *testing.T) {
	c := NewCargo(t.TempDir(), "", "")
	c.Bin = filepath.Join(t.TempDir(), "no-such-cargo")

	assert.ErrorIs(t, c.Build(context.Background(), TargetNative), ErrToolNotFound)
}

func TestWasmArtifact(t *testing.T) {
	targetDir := t.TempDir()
	c := NewCargo(t.TempDir(), "", targetDir)

	_, err := c.WasmArtifact("site")
	assert.Error(t, err)

	artifact := filepath.Join(targetDir, "wasm32-unknown-unknown", "release", "site.wasm")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, []byte{0x00, 0x61, 0x73, 0x6d}, 0o644))

	path, err := c.WasmArtifact("site")
	require.NoError(t, err)
	assert.Equal(t, artifact, path)
}
