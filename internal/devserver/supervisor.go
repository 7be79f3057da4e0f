// Package devserver runs the interactive development session: stylesheet
// watcher, source watcher with rebuilds, and a live-reloading HTTP server
// over the published bundle, all under one cancellation scope.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/biblecomputer/bible/internal/depcache"
	"github.com/biblecomputer/bible/internal/metrics"
)

// StyleEngine generates the stylesheet once and keeps it current in watch
// mode. Implemented by *css.Generator.
type StyleEngine interface {
	Generate(ctx context.Context) error
	Watch(ctx context.Context) error
}

// Supervisor owns the concurrent pieces of a dev session. All children share
// one cancellation scope, but only a termination signal or a server failure
// ends the session: a crashed watcher is logged and the remaining children
// keep serving.
type Supervisor struct {
	ProjectRoot string
	Dist        string
	Port        int
	Debounce    time.Duration
	GCInterval  time.Duration // zero disables the cache sweep

	CSS      StyleEngine
	Store    *depcache.Store  // optional; enables the periodic sweep
	Recorder metrics.Recorder // nil means noop
	Registry *prom.Registry   // nil disables /metrics

	// Rebuild runs the full client pipeline and returns the new build
	// signature for broadcast.
	Rebuild func(ctx context.Context) (string, error)

	// RequiredFiles must exist under the project before the session
	// starts. A helpful diagnostic beats a cryptic compile failure later.
	RequiredFiles []string
}

// Run starts the session and blocks until a termination signal or a server
// failure. Signal-driven shutdown is the normal exit and returns nil; a
// second signal during teardown is ignored. Watcher failures never tear the
// session down, they only cost their own feature.
func (s *Supervisor) Run(parent context.Context) error {
	if err := s.checkProjectRoot(); err != nil {
		return err
	}
	if s.Recorder == nil {
		s.Recorder = metrics.NoopRecorder{}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first page load must never reference a missing stylesheet, so
	// one blocking pass runs before anything serves.
	if err := s.CSS.Generate(ctx); err != nil {
		return fmt.Errorf("initial stylesheet generation: %w", err)
	}

	hub := NewReloadHub(s.Recorder)
	defer hub.Shutdown()

	errc := make(chan error, 1)

	go func() {
		if err := s.CSS.Watch(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Style watcher failed, stylesheet rebuilds disabled for this session", "error", err)
		}
	}()

	watcher, err := NewWatcher(s.ProjectRoot, s.Debounce, func(wctx context.Context, paths []string) {
		slog.Info("Source change detected", "files", len(paths))
		s.Recorder.IncRebuild("source")
		sig, rerr := s.Rebuild(wctx)
		if rerr != nil {
			// Dev mode keeps running on a broken build; the fix is
			// usually the next keystroke.
			slog.Error("Rebuild failed", "error", rerr)
			return
		}
		hub.Broadcast(sig)
	})
	if err != nil {
		return err
	}
	go func() {
		if werr := watcher.Run(ctx); werr != nil && ctx.Err() == nil {
			slog.Error("Source watcher failed, rebuild-on-change disabled for this session", "error", werr)
		}
	}()

	srv := newHTTPServer(s.Port, (&Server{Dist: s.Dist, Hub: hub, Registry: s.Registry}).Handler())
	go func() {
		slog.Info("Dev server listening", "addr", srv.Addr)
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errc <- fmt.Errorf("dev server: %w", serr)
		}
	}()

	if s.Store != nil && s.GCInterval > 0 {
		sweeper, serr := newCacheSweeper(s.Store, s.GCInterval)
		if serr != nil {
			return serr
		}
		sweeper.start()
		defer sweeper.stop()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down dev session")
	case runErr = <-errc:
		slog.Error("Dev server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		slog.Debug("server shutdown", "error", serr)
	}
	return runErr
}

func (s *Supervisor) checkProjectRoot() error {
	if _, err := os.Stat(s.ProjectRoot); err != nil {
		return fmt.Errorf("project root %s not found: %w", s.ProjectRoot, err)
	}
	var missing []string
	for _, f := range s.RequiredFiles {
		if _, err := os.Stat(f); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("not a client project root (%s): missing %v; run from the project directory or pass --config", s.ProjectRoot, missing)
	}
	return nil
}
