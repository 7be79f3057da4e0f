package bundle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bundleFixture struct {
	wasm    string
	bundler *Bundler
}

// fakeGlue stands in for the pinned glue-code generator: it writes an app.js
// and a transformed wasm file into the destination.
func fakeGlue(ctx context.Context, _, wasmPath, destDir string) error {
	_ = ctx
	if err := os.WriteFile(filepath.Join(destDir, GlueBaseName+".js"), []byte("export default function init(){}\n"), 0o644); err != nil {
		return err
	}
	data, err := os.ReadFile(wasmPath)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, GlueBaseName+"_bg.wasm"), data, 0o644)
}

func newFixture(t *testing.T, withAssets bool) *bundleFixture {
	t.Helper()
	dir := t.TempDir()

	wasm := filepath.Join(dir, "site.wasm")
	require.NoError(t, os.WriteFile(wasm, []byte{0x00, 0x61, 0x73, 0x6d}, 0o644))

	htmlEntry := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(htmlEntry, []byte("<html><head><title>app</title></head><body></body></html>"), 0o644))

	cssPath := filepath.Join(dir, "style.css")
	require.NoError(t, os.WriteFile(cssPath, []byte("body { margin: 0; }\n"), 0o644))

	assetsDir := filepath.Join(dir, "assets")
	if withAssets {
		require.NoError(t, os.MkdirAll(assetsDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(assetsDir, "icon.svg"), []byte("<svg/>"), 0o644))
	}

	b := NewBundler("unused", htmlEntry, cssPath, assetsDir, filepath.Join(dir, "dist"))
	b.RunGlue = fakeGlue
	return &bundleFixture{wasm: wasm, bundler: b}
}

func TestBundleProducesCompleteOutput(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.bundler.Bundle(context.Background(), f.wasm))

	out := f.bundler.OutputDir
	assert.FileExists(t, filepath.Join(out, EntryPage))
	assert.FileExists(t, filepath.Join(out, FallbackPage))
	assert.FileExists(t, filepath.Join(out, Stylesheet))
	assert.FileExists(t, filepath.Join(out, GlueBaseName+".js"))
	assert.FileExists(t, filepath.Join(out, GlueBaseName+"_bg.wasm"))
	assert.FileExists(t, filepath.Join(out, "assets", "icon.svg"))

	page, err := os.ReadFile(filepath.Join(out, EntryPage))
	require.NoError(t, err)
	assert.Contains(t, string(page), `href="style.css"`)
	assert.Contains(t, string(page), "import init from './app.js'")

	// No staging leftovers.
	assert.NoDirExists(t, out+"_stage")
	assert.NoDirExists(t, out+".prev")
}

func TestFallbackPageIsByteIdentical(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.bundler.Bundle(context.Background(), f.wasm))

	entry, err := os.ReadFile(filepath.Join(f.bundler.OutputDir, EntryPage))
	require.NoError(t, err)
	fallback, err := os.ReadFile(filepath.Join(f.bundler.OutputDir, FallbackPage))
	require.NoError(t, err)
	assert.Equal(t, entry, fallback)
}

func TestBundleAbsentAssetsDirSucceeds(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.bundler.Bundle(context.Background(), f.wasm))
	assert.NoDirExists(t, filepath.Join(f.bundler.OutputDir, "assets"))
}

func TestBundleIdempotent(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.bundler.Bundle(context.Background(), f.wasm))

	first := readTree(t, f.bundler.OutputDir)
	require.NoError(t, f.bundler.Bundle(context.Background(), f.wasm))
	second := readTree(t, f.bundler.OutputDir)

	assert.Equal(t, first, second)
}

func TestBundleFailurePreservesPreviousOutput(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.bundler.Bundle(context.Background(), f.wasm))
	before := readTree(t, f.bundler.OutputDir)

	// Glue generation fails on the second run: final output must be intact.
	f.bundler.RunGlue = func(context.Context, string, string, string) error {
		return errors.New("generator exploded")
	}
	err := f.bundler.Bundle(context.Background(), f.wasm)
	require.Error(t, err)

	after := readTree(t, f.bundler.OutputDir)
	assert.Equal(t, before, after)
	assert.NoDirExists(t, f.bundler.OutputDir+"_stage")
}

func TestBundleMissingWasmAborts(t *testing.T) {
	f := newFixture(t, false)
	err := f.bundler.Bundle(context.Background(), filepath.Join(t.TempDir(), "absent.wasm"))
	require.Error(t, err)
	assert.NoDirExists(t, f.bundler.OutputDir)
}

func TestBundleMissingStylesheetAborts(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, os.Remove(f.bundler.CSSPath))
	err := f.bundler.Bundle(context.Background(), f.wasm)
	require.Error(t, err)
	assert.NoDirExists(t, f.bundler.OutputDir)
}

func TestBundleCompress(t *testing.T) {
	f := newFixture(t, false)
	f.bundler.Compress = true
	require.NoError(t, f.bundler.Bundle(context.Background(), f.wasm))

	css, err := os.ReadFile(filepath.Join(f.bundler.OutputDir, Stylesheet))
	require.NoError(t, err)
	assert.Equal(t, "body{margin:0}", string(css))

	// Fallback invariant holds for compressed bundles too.
	entry, _ := os.ReadFile(filepath.Join(f.bundler.OutputDir, EntryPage))
	fallback, _ := os.ReadFile(filepath.Join(f.bundler.OutputDir, FallbackPage))
	assert.Equal(t, entry, fallback)
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := map[string]string{}
	require.NoError(t, filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		tree[rel] = string(data)
		return nil
	}))
	return tree
}
