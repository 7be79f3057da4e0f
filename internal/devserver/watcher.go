package devserver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"

	"github.com/biblecomputer/bible/internal/sourceset"
)

const digestMemoSize = 4096

// Watcher observes the project tree and reports debounced, deduplicated
// change batches. A per-file digest memo filters events that did not change
// file content (editors often emit several write events per save).
type Watcher struct {
	Root        string
	Debounce    time.Duration
	ExcludeDirs []string

	// OnChange receives the content-changed paths of one debounced batch.
	OnChange func(ctx context.Context, paths []string)

	memo *lru.Cache[string, string]
}

// NewWatcher returns a watcher over root with the default exclusions.
func NewWatcher(root string, debounce time.Duration, onChange func(context.Context, []string)) (*Watcher, error) {
	memo, err := lru.New[string, string](digestMemoSize)
	if err != nil {
		return nil, fmt.Errorf("digest memo: %w", err)
	}
	return &Watcher{
		Root:        root,
		Debounce:    debounce,
		ExcludeDirs: sourceset.DefaultExcludeDirs,
		OnChange:    onChange,
		memo:        memo,
	}, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.Root); err != nil {
		return err
	}

	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.excluded(ev.Name) {
				continue
			}
			// New directories must join the watch before their
			// contents change.
			if ev.Has(fsnotify.Create) {
				if info, serr := os.Stat(ev.Name); serr == nil && info.IsDir() {
					if aerr := w.addRecursive(fsw, ev.Name); aerr != nil {
						slog.Debug("watch new directory", "path", ev.Name, "error", aerr)
					}
					continue
				}
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				pending[ev.Name] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(w.Debounce)
				} else {
					timer.Reset(w.Debounce)
				}
				fire = timer.C
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		case <-fire:
			fire = nil
			changed := w.filterChanged(pending)
			pending = map[string]struct{}{}
			if len(changed) > 0 && w.OnChange != nil {
				w.OnChange(ctx, changed)
			}
		}
	}
}

// filterChanged drops paths whose content digest matches the memo. Removed
// files always count as changed.
func (w *Watcher) filterChanged(pending map[string]struct{}) []string {
	var changed []string
	for p := range pending {
		digest, err := fileDigest(p)
		if err != nil {
			// Removed or unreadable: a change if we ever saw it.
			if _, seen := w.memo.Get(p); seen {
				w.memo.Remove(p)
				changed = append(changed, p)
			}
			continue
		}
		if prev, ok := w.memo.Get(p); ok && prev == digest {
			continue
		}
		w.memo.Add(p, digest)
		changed = append(changed, p)
	}
	return changed
}

func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, d := range w.ExcludeDirs {
			if seg == d {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excluded(path) {
			return filepath.SkipDir
		}
		if werr := fsw.Add(path); werr != nil {
			return fmt.Errorf("watch %s: %w", path, werr)
		}
		return nil
	})
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
