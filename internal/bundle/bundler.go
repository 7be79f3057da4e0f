// Package bundle fuses the compiled WASM module, its generated JS glue,
// and the compiled stylesheet into a deployable static directory. Assembly
// happens in a staging directory that is atomically promoted, so a failed
// build never disturbs the previously published bundle.
package bundle

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Names of the files inside the finished bundle.
const (
	EntryPage    = "index.html"
	FallbackPage = "404.html" // byte-identical copy of the entry page
	Stylesheet   = "style.css"
	GlueBaseName = "app" // wasm-bindgen --out-name
)

// Bundler assembles an output bundle.
type Bundler struct {
	ToolBin   string // verified pinned glue-code generator binary
	HTMLEntry string // entry page template
	CSSPath   string // generated stylesheet (one-shot CSS pass output)
	AssetsDir string // optional; absent dir means no assets subdirectory
	OutputDir string // final published location
	Compress  bool
	// RunGlue invokes the glue-code generator. Tests substitute a fake.
	RunGlue func(ctx context.Context, toolBin, wasmPath, destDir string) error
}

// NewBundler builds a Bundler with the real wasm-bindgen invocation.
func NewBundler(toolBin, htmlEntry, cssPath, assetsDir, outputDir string) *Bundler {
	return &Bundler{
		ToolBin:   toolBin,
		HTMLEntry: htmlEntry,
		CSSPath:   cssPath,
		AssetsDir: assetsDir,
		OutputDir: outputDir,
		RunGlue:   runGlueGenerator,
	}
}

// Bundle runs the packaging steps in order: glue generation, HTML assembly,
// asset copy, fallback duplication, optional minification, then atomic
// promotion. Any missing intermediate artifact aborts before promotion.
func (b *Bundler) Bundle(ctx context.Context, wasmPath string) error {
	if _, err := os.Stat(wasmPath); err != nil {
		return fmt.Errorf("wasm artifact missing: %w", err)
	}
	if _, err := os.Stat(b.CSSPath); err != nil {
		return fmt.Errorf("generated stylesheet missing: %w", err)
	}

	st := newStaging(b.OutputDir)
	if err := st.begin(); err != nil {
		return err
	}

	if err := b.assemble(ctx, st.stageDir, wasmPath); err != nil {
		st.abort()
		return err
	}
	return st.finalize()
}

func (b *Bundler) assemble(ctx context.Context, stageDir, wasmPath string) error {
	if err := b.RunGlue(ctx, b.ToolBin, wasmPath, stageDir); err != nil {
		return fmt.Errorf("glue generation: %w", err)
	}
	gluePath := filepath.Join(stageDir, GlueBaseName+".js")
	if _, err := os.Stat(gluePath); err != nil {
		return fmt.Errorf("glue generator produced no JS module at %s: %w", gluePath, err)
	}

	css, err := os.ReadFile(b.CSSPath)
	if err != nil {
		return fmt.Errorf("read stylesheet: %w", err)
	}
	if b.Compress {
		if css, err = minifyCSS(css); err != nil {
			return fmt.Errorf("minify stylesheet: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(stageDir, Stylesheet), css, 0o644); err != nil {
		return fmt.Errorf("write stylesheet: %w", err)
	}

	page, err := assembleEntryPage(b.HTMLEntry, Stylesheet, GlueBaseName+".js")
	if err != nil {
		return err
	}
	if b.Compress {
		if page, err = minifyHTML(page); err != nil {
			return fmt.Errorf("minify entry page: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(stageDir, EntryPage), page, 0o644); err != nil {
		return fmt.Errorf("write entry page: %w", err)
	}

	// The fallback page is always the entry page's exact bytes; it is never
	// maintained separately.
	if err := os.WriteFile(filepath.Join(stageDir, FallbackPage), page, 0o644); err != nil {
		return fmt.Errorf("write fallback page: %w", err)
	}
	if err := verifyFallback(stageDir); err != nil {
		return err
	}

	if err := b.copyAssets(stageDir); err != nil {
		return err
	}
	return nil
}

// copyAssets mirrors the assets directory into the stage. An absent assets
// directory is not an error and yields no assets subdirectory.
func (b *Bundler) copyAssets(stageDir string) error {
	if b.AssetsDir == "" {
		return nil
	}
	info, err := os.Stat(b.AssetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Assets directory absent, skipping", "dir", b.AssetsDir)
			return nil
		}
		return fmt.Errorf("stat assets dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("assets path %s is not a directory", b.AssetsDir)
	}

	dest := filepath.Join(stageDir, "assets")
	return filepath.WalkDir(b.AssetsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(b.AssetsDir, path)
		if rerr != nil {
			return rerr
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return fmt.Errorf("read asset %s: %w", rel, rerr)
		}
		return os.WriteFile(target, data, 0o644)
	})
}

func verifyFallback(stageDir string) error {
	entry, err := os.ReadFile(filepath.Join(stageDir, EntryPage))
	if err != nil {
		return fmt.Errorf("reread entry page: %w", err)
	}
	fallback, err := os.ReadFile(filepath.Join(stageDir, FallbackPage))
	if err != nil {
		return fmt.Errorf("reread fallback page: %w", err)
	}
	if !bytes.Equal(entry, fallback) {
		return fmt.Errorf("fallback page diverged from entry page")
	}
	return nil
}

func runGlueGenerator(ctx context.Context, toolBin, wasmPath, destDir string) error {
	cmd := exec.CommandContext(ctx, toolBin,
		"--target", "web",
		"--out-dir", destDir,
		"--out-name", GlueBaseName,
		"--no-typescript",
		wasmPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	slog.Debug("glue generator invocation", "tool", toolBin, "wasm", wasmPath)
	if err := cmd.Run(); err != nil {
		if msg := stderr.String(); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
