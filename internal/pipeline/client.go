package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biblecomputer/bible/internal/bundle"
	"github.com/biblecomputer/bible/internal/config"
	"github.com/biblecomputer/bible/internal/css"
	"github.com/biblecomputer/bible/internal/depcache"
	"github.com/biblecomputer/bible/internal/metrics"
	"github.com/biblecomputer/bible/internal/pin"
	"github.com/biblecomputer/bible/internal/sourceset"
	"github.com/biblecomputer/bible/internal/toolchain"
)

// GlueToolName is the pinned code generator that produces the JS/wasm
// bindings. It must appear under tools.pins in the configuration.
const GlueToolName = "wasm-bindgen"

// ClientBuild assembles and runs the full client pipeline: source selection,
// pin verification, dependency cache, wasm compile, stylesheet generation,
// bundling, and the published-output check.
type ClientBuild struct {
	Config    *config.Config
	Output    string // published bundle location; empty means config dist
	Compress  bool
	SkipCache bool // bypass the dependency cache, compiling everything fresh
	Recorder  metrics.Recorder

	Store  *depcache.Store
	Pinner *pin.Pinner

	// build state shared across stages
	srcs    *sourceset.SourceSet
	entry   *depcache.Entry
	glueBin string
	wasm    string
}

// NewClientBuild wires a ClientBuild over an open cache store.
func NewClientBuild(cfg *config.Config, store *depcache.Store) *ClientBuild {
	return &ClientBuild{
		Config:   cfg,
		Recorder: metrics.NoopRecorder{},
		Store:    store,
		Pinner:   pin.NewPinner(cfg.Cache.Dir, cfg.Tools.Cargo, cfg.Cache.Home),
	}
}

func (c *ClientBuild) dist() string {
	if c.Output != "" {
		return c.Output
	}
	return c.Config.Output.Dist
}

func (c *ClientBuild) stylesheetPath() string {
	return filepath.Join(c.Config.Output.Dir, bundle.Stylesheet)
}

// Run executes the pipeline and returns the finished report. The returned
// error is the first fatal stage error, nil on success or warning outcomes.
func (c *ClientBuild) Run(ctx context.Context) (*Report, error) {
	report := NewReport("build")
	p := New().
		Add(StageSelectSources, c.selectSources(report)).
		Add(StageEnsurePins, c.ensurePins).
		Add(StageDepCache, c.ensureDepCache(report)).
		Add(StageCompile, c.compile).
		Add(StageGenerateCSS, c.generateCSS).
		Add(StageBundle, c.bundleStage).
		Add(StagePublish, c.checkPublished)

	err := Run(ctx, report, p.Stages())
	report.Finish()
	c.observe(report)
	return report, err
}

func (c *ClientBuild) observe(r *Report) {
	for stage, d := range r.StageDurations {
		c.Recorder.ObserveStageDuration(stage, d)
		c.Recorder.IncStageResult(stage, metrics.ResultLabel(r.StageResult(stage)))
	}
	// Canceled stages never ran, so they carry no duration entry.
	for stage := range r.StageErrors {
		if _, ok := r.StageDurations[stage]; !ok {
			c.Recorder.IncStageResult(stage, metrics.ResultLabel(r.StageResult(stage)))
		}
	}
	c.Recorder.ObserveBuildDuration(r.Duration())
	c.Recorder.IncBuildOutcome(string(r.Outcome))
}

func (c *ClientBuild) selectSources(report *Report) Stage {
	return func(context.Context) error {
		sel := sourceset.NewSelector(c.Config.Project.Root)
		sel.AssetsDir = c.Config.Project.AssetsDir
		srcs, err := sel.Select()
		if err != nil {
			return Fatal(StageSelectSources, err)
		}
		c.srcs = srcs
		report.Signature = srcs.Digest()
		return nil
	}
}

func (c *ClientBuild) ensurePins(ctx context.Context) error {
	gluePin, ok := c.Config.Pin(GlueToolName)
	if !ok {
		return Fatal(StageEnsurePins, fmt.Errorf("tools.pins must declare %s", GlueToolName))
	}
	bin, err := c.Pinner.Ensure(ctx, gluePin)
	if err != nil {
		return Fatal(StageEnsurePins, err)
	}
	c.glueBin = bin
	return nil
}

func (c *ClientBuild) ensureDepCache(report *Report) Stage {
	return func(ctx context.Context) error {
		builder := depcache.NewBuilder(c.Store, c.Config.Cache.Dir, c.Config.Tools.Cargo, c.Config.Cache.Home)
		if c.SkipCache {
			key := depcache.Key(toolchain.TargetWasm, c.srcs.ManifestOnly().Digest())
			if err := c.Store.Delete(key); err != nil {
				return Fatal(StageDepCache, err)
			}
		}
		entry, err := builder.Ensure(ctx, toolchain.TargetWasm, c.srcs, report.ID)
		if err != nil {
			c.Recorder.IncDepCacheMiss()
			return Fatal(StageDepCache, err)
		}
		if entry.BuildID == report.ID {
			c.Recorder.IncDepCacheMiss()
		} else {
			c.Recorder.IncDepCacheHit()
		}
		c.entry = entry
		return nil
	}
}

// compile builds the client crate with the artifact directory pointed at the
// dependency cache entry, so third-party compilation is reused wholesale.
func (c *ClientBuild) compile(ctx context.Context) error {
	crateDir := filepath.Dir(c.Config.Project.Manifest)
	cargo := toolchain.NewCargo(crateDir, c.Config.Cache.Home, c.entry.Path)
	cargo.Bin = c.Config.Tools.Cargo
	if err := cargo.Build(ctx, toolchain.TargetWasm); err != nil {
		return Fatal(StageCompile, err)
	}

	crate, err := toolchain.CrateName(c.Config.Project.Manifest)
	if err != nil {
		return Fatal(StageCompile, err)
	}
	wasm, err := cargo.WasmArtifact(toolchain.ArtifactBaseName(crate))
	if err != nil {
		return Fatal(StageCompile, err)
	}
	c.wasm = wasm
	return nil
}

func (c *ClientBuild) generateCSS(ctx context.Context) error {
	gen := css.NewGenerator(c.Config.Tools.Tailwind, c.Config.Project.StyleEntry,
		c.Config.Project.StyleConfig, c.stylesheetPath())
	if err := gen.Generate(ctx); err != nil {
		return Fatal(StageGenerateCSS, err)
	}
	return nil
}

func (c *ClientBuild) bundleStage(ctx context.Context) error {
	b := bundle.NewBundler(c.glueBin, c.Config.Project.HTMLEntry, c.stylesheetPath(),
		c.Config.Project.AssetsDir, c.dist())
	b.Compress = c.Compress
	if err := b.Bundle(ctx, c.wasm); err != nil {
		return Fatal(StageBundle, err)
	}
	return nil
}

// checkPublished confirms the promoted output is complete. Failure here
// means the swap logic is broken, not the project.
func (c *ClientBuild) checkPublished(context.Context) error {
	required := []string{
		bundle.EntryPage,
		bundle.FallbackPage,
		bundle.Stylesheet,
		bundle.GlueBaseName + ".js",
		bundle.GlueBaseName + "_bg.wasm",
	}
	for _, name := range required {
		if _, err := os.Stat(filepath.Join(c.dist(), name)); err != nil {
			return Fatal(StagePublish, fmt.Errorf("published bundle incomplete: %w", err))
		}
	}
	return nil
}

// Check runs the native gating checks: clippy with warnings denied, then
// rustfmt in check mode. Third-party compilation comes from the native
// dependency cache so repeated checks stay fast. A violation aborts unless
// warnOnly is set, in which case violations are recorded and the run
// continues.
func Check(ctx context.Context, cfg *config.Config, store *depcache.Store, warnOnly bool) (*Report, error) {
	report := NewReport("check")

	var srcs *sourceset.SourceSet
	var cargo *toolchain.Cargo

	classify := func(stage StageName, err error) error {
		if err == nil {
			return nil
		}
		if warnOnly {
			return Warn(stage, err)
		}
		return Fatal(stage, err)
	}

	p := New().
		Add(StageSelectSources, func(context.Context) error {
			sel := sourceset.NewSelector(cfg.Project.Root)
			sel.AssetsDir = cfg.Project.AssetsDir
			s, err := sel.Select()
			if err != nil {
				return Fatal(StageSelectSources, err)
			}
			srcs = s
			report.Signature = s.Digest()
			return nil
		}).
		Add(StageDepCache, func(ctx context.Context) error {
			builder := depcache.NewBuilder(store, cfg.Cache.Dir, cfg.Tools.Cargo, cfg.Cache.Home)
			entry, err := builder.Ensure(ctx, toolchain.TargetNative, srcs, report.ID)
			if err != nil {
				return Fatal(StageDepCache, err)
			}
			cargo = toolchain.NewCargo(filepath.Dir(cfg.Project.Manifest), cfg.Cache.Home, entry.Path)
			cargo.Bin = cfg.Tools.Cargo
			return nil
		}).
		Add(StageLintCheck, func(ctx context.Context) error {
			return classify(StageLintCheck, cargo.Clippy(ctx))
		}).
		Add(StageFormatCheck, func(ctx context.Context) error {
			return classify(StageFormatCheck, cargo.FmtCheck(ctx))
		})

	err := Run(ctx, report, p.Stages())
	report.Finish()
	return report, err
}
