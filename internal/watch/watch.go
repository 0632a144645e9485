// Package watch reports edits made to the content tree outside the service,
// such as hand-edited node files or a git checkout.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/strand/internal/storage"
)

// DefaultDebounce groups bursts of events into one callback.
const DefaultDebounce = 200 * time.Millisecond

// ScopeCollection marks changes to phrases.json or connections.json.
const ScopeCollection = "collection"

// Change is one content file that was written or removed.
type Change struct {
	Scope   string // a storage.Kind or ScopeCollection
	ID      string // node id, essay file name or collection name
	Removed bool
}

// Func receives every debounced batch of changes.
type Func func(ctx context.Context, changes []Change)

// Watcher watches the content root and its per-kind directories.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	fn       Func
}

// New returns a watcher over the content root that calls fn with each batch.
func New(root string, logger *slog.Logger, fn Func) *Watcher {
	return &Watcher{root: filepath.Clean(root), debounce: DefaultDebounce, logger: logger, fn: fn}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	for _, k := range storage.Kinds {
		if err := fw.Add(filepath.Join(w.root, string(k))); err != nil {
			return err
		}
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	pending := make(map[Change]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			batch := flatten(pending)
			pending = make(map[Change]struct{})
			w.logger.Debug("watcher: flush", slog.Int("changes", len(batch)))
			w.fn(ctx, batch)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			c, ok := w.classify(ev)
			if !ok {
				continue
			}
			// Only the latest state of a file matters.
			delete(pending, Change{Scope: c.Scope, ID: c.ID, Removed: !c.Removed})
			pending[c] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// classify maps an fsnotify event to a Change. Temp files, the manifest and
// anything that is not content are ignored.
func (w *Watcher) classify(ev fsnotify.Event) (Change, bool) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return Change{}, false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || name == storage.ManifestFile {
		return Change{}, false
	}
	removed := ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	dir := filepath.Dir(ev.Name)
	if dir == w.root {
		switch name {
		case string(storage.CollectionPhrases) + ".json":
			return Change{Scope: ScopeCollection, ID: string(storage.CollectionPhrases), Removed: removed}, true
		case string(storage.CollectionConnections) + ".json":
			return Change{Scope: ScopeCollection, ID: string(storage.CollectionConnections), Removed: removed}, true
		}
		return Change{}, false
	}
	if filepath.Dir(dir) != w.root {
		return Change{}, false
	}

	kind := storage.Kind(filepath.Base(dir))
	switch kind {
	case storage.KindEssays:
		if !strings.HasSuffix(name, ".md") {
			return Change{}, false
		}
		return Change{Scope: string(kind), ID: name, Removed: removed}, true
	case storage.KindNodes, storage.KindCuriosities, storage.KindDurational:
		if !strings.HasSuffix(name, ".json") {
			return Change{}, false
		}
		return Change{Scope: string(kind), ID: strings.TrimSuffix(name, ".json"), Removed: removed}, true
	}
	return Change{}, false
}

func flatten(m map[Change]struct{}) []Change {
	out := make([]Change, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].ID < out[j].ID
	})
	return out
}
