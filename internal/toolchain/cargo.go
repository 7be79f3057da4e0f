package toolchain

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

var (
	// ErrToolNotFound indicates the cargo binary is missing from PATH.
	ErrToolNotFound = errors.New("cargo binary not found")
	// ErrCompile indicates a compilation failure in the project code.
	ErrCompile = errors.New("compilation failed")
	// ErrLint indicates a clippy violation under deny-warnings.
	ErrLint = errors.New("lint check failed")
	// ErrFormat indicates a rustfmt violation.
	ErrFormat = errors.New("format check failed")
)

// Cargo invokes the cargo binary against a single manifest directory with
// pinned environment.
type Cargo struct {
	Bin       string // cargo binary; defaults to "cargo"
	Dir       string // directory containing Cargo.toml
	Home      string // CARGO_HOME; isolates registry and tool state per build
	TargetDir string // CARGO_TARGET_DIR; the dependency/artifact cache location
}

// NewCargo constructs a runner for the given manifest directory.
func NewCargo(dir, home, targetDir string) *Cargo {
	return &Cargo{Bin: "cargo", Dir: dir, Home: home, TargetDir: targetDir}
}

func (c *Cargo) bin() string {
	if c.Bin == "" {
		return "cargo"
	}
	return c.Bin
}

func (c *Cargo) run(ctx context.Context, args ...string) (string, error) {
	if _, err := exec.LookPath(c.bin()); err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolNotFound, err)
	}

	cmd := exec.CommandContext(ctx, c.bin(), args...)
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	if c.Home != "" {
		cmd.Env = append(cmd.Env, "CARGO_HOME="+c.Home)
	}
	if c.TargetDir != "" {
		cmd.Env = append(cmd.Env, "CARGO_TARGET_DIR="+c.TargetDir)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("cargo invocation", "args", args, "dir", c.Dir, "target_dir", c.TargetDir)

	err := cmd.Run()
	out := stderr.String()
	if out == "" {
		out = stdout.String()
	}
	if err != nil {
		if out != "" {
			return out, fmt.Errorf("cargo %s: %w: %s", args[0], err, out)
		}
		return out, fmt.Errorf("cargo %s: %w", args[0], err)
	}
	return out, nil
}

// Build compiles the crate for the given target in release mode. For the
// wasm target no tests are run; they are not meaningful off the host.
func (c *Cargo) Build(ctx context.Context, target Target) error {
	args := []string{"build", "--release"}
	if triple := target.Triple(); triple != "" {
		args = append(args, "--target", triple)
	}
	if _, err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("%w (%s): %w", ErrCompile, target, err)
	}
	return nil
}

// Clippy runs the lint gate with warnings denied. Any violation is fatal to
// the check path; no artifact is produced.
func (c *Cargo) Clippy(ctx context.Context) error {
	if _, err := c.run(ctx, "clippy", "--all-targets", "--", "-D", "warnings"); err != nil {
		return fmt.Errorf("%w: %w", ErrLint, err)
	}
	return nil
}

// FmtCheck verifies formatting without rewriting any file.
func (c *Cargo) FmtCheck(ctx context.Context) error {
	if _, err := c.run(ctx, "fmt", "--", "--check"); err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return nil
}

// Install builds and installs a binary crate from a local source tree into
// rootDir/bin. Used for the pinned code-generation tools after hash
// verification.
func (c *Cargo) Install(ctx context.Context, srcDir, rootDir string) error {
	if _, err := c.run(ctx, "install", "--path", srcDir, "--root", rootDir, "--locked"); err != nil {
		return fmt.Errorf("install tool from %s: %w", srcDir, err)
	}
	return nil
}

// WasmArtifact returns the expected path of the compiled wasm module for
// the named crate, and verifies it exists.
func (c *Cargo) WasmArtifact(crateName string) (string, error) {
	path := filepath.Join(c.TargetDir, TargetWasm.Triple(), "release", crateName+".wasm")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("wasm artifact missing at %s: %w", path, err)
	}
	return path, nil
}
