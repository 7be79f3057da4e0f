package devserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/biblecomputer/bible/internal/depcache"
)

// maxCacheEntryAge is how long an untouched dependency cache entry survives
// a sweep.
const maxCacheEntryAge = 7 * 24 * time.Hour

// cacheSweeper periodically prunes stale dependency cache entries while the
// dev session runs.
type cacheSweeper struct {
	scheduler gocron.Scheduler
	store     *depcache.Store
}

// newCacheSweeper schedules a prune every interval. The first sweep runs
// after one full interval, not at startup.
func newCacheSweeper(store *depcache.Store, interval time.Duration) (*cacheSweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	sweeper := &cacheSweeper{scheduler: s, store: store}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sweeper.sweep),
		gocron.WithName("depcache-gc"),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule cache sweep: %w", err)
	}
	return sweeper, nil
}

func (c *cacheSweeper) sweep() {
	removed, err := c.store.Prune(maxCacheEntryAge)
	if err != nil {
		slog.Warn("dependency cache sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("dependency cache sweep", "removed", removed)
	}
}

func (c *cacheSweeper) start() { c.scheduler.Start() }

func (c *cacheSweeper) stop() {
	if err := c.scheduler.Shutdown(); err != nil {
		slog.Debug("scheduler shutdown", "error", err)
	}
}
