package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/biblecomputer/bible/internal/bundle"
	"github.com/biblecomputer/bible/internal/css"
	"github.com/biblecomputer/bible/internal/devserver"
	"github.com/biblecomputer/bible/internal/metrics"
	"github.com/biblecomputer/bible/internal/pipeline"
)

// DevCmd implements the 'dev' command: the interactive development session
// with rebuild-on-change and live reload.
type DevCmd struct {
	Port int `short:"p" help:"Dev server port (overrides configuration)"`
}

func (d *DevCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if d.Port != 0 {
		cfg.Dev.Port = d.Port
	}

	store, err := openCacheStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var registry *prom.Registry
	if cfg.Dev.MetricsOn {
		registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	rebuild := func(ctx context.Context) (string, error) {
		cb := pipeline.NewClientBuild(cfg, store)
		cb.Recorder = recorder
		report, rerr := cb.Run(ctx)
		recordHistory(cfg, report)
		if rerr != nil {
			return "", rerr
		}
		return report.Signature, nil
	}

	// First build so the session starts with something to serve. Dev mode
	// tolerates a broken tree; the watcher rebuilds on the next save.
	if _, err := rebuild(context.Background()); err != nil {
		slog.Error("Initial build failed, serving last published bundle", "error", err)
	}

	var gcInterval time.Duration
	if cfg.Dev.GCInterval != "" {
		gcInterval, err = time.ParseDuration(cfg.Dev.GCInterval)
		if err != nil {
			slog.Warn("Invalid gc_interval, cache sweep disabled", "value", cfg.Dev.GCInterval)
			gcInterval = 0
		}
	}

	sup := &devserver.Supervisor{
		ProjectRoot: cfg.Project.Root,
		Dist:        cfg.Output.Dist,
		Port:        cfg.Dev.Port,
		Debounce:    time.Duration(cfg.Dev.DebounceMS) * time.Millisecond,
		GCInterval:  gcInterval,
		CSS: css.NewGenerator(cfg.Tools.Tailwind, cfg.Project.StyleEntry,
			cfg.Project.StyleConfig, filepath.Join(cfg.Output.Dir, bundle.Stylesheet)),
		Store:    store,
		Recorder: recorder,
		Registry: registry,
		Rebuild:  rebuild,
		RequiredFiles: []string{
			cfg.Project.Manifest,
			cfg.Project.HTMLEntry,
			cfg.Project.StyleEntry,
		},
	}
	return sup.Run(context.Background())
}
