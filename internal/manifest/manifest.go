// Package manifest rebuilds the landing-page manifest from the individual node files.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/starford/strand/internal/metrics"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
)

const dateLayout = "2006-01-02"

// Builder regenerates nodes/landing-nodes.json. Rebuilds are serialized.
type Builder struct {
	store  storage.Provider
	logger *slog.Logger
	mu     sync.Mutex
}

// NewBuilder returns a builder reading and writing through store.
func NewBuilder(store storage.Provider, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, logger: logger}
}

// Entry is one manifest record: every field of the node file as written,
// with position and landing visibility normalized. The embedded Node is the
// typed view used for sorting and by callers.
type Entry struct {
	models.Node
	fields map[string]json.RawMessage
}

// MarshalJSON emits the file's own fields, unknown keys included.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.fields == nil {
		return json.Marshal(e.Node)
	}
	return json.Marshal(e.fields)
}

// Rebuild reads every node file, fills in defaults, sorts the result and
// writes the manifest. Files that are not a JSON object or lack id/type are
// logged and skipped; a listing or write failure is returned.
func (b *Builder) Rebuild(ctx context.Context) (entries []Entry, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.ManifestRebuildDuration.WithLabelValues(metrics.Status(err)).Observe(time.Since(start).Seconds())
	}()

	files, err := b.store.List(storage.KindNodes)
	if err != nil {
		return nil, fmt.Errorf("manifest: list nodes: %w", err)
	}
	b.logger.Debug("manifest: rebuilding", slog.Int("files", len(files)))

	entries = make([]Entry, 0, len(files))
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := b.store.Read(storage.KindNodes, file)
		if err != nil {
			b.skip(file, "unreadable", slog.String("error", err.Error()))
			continue
		}
		e, err := decode(data)
		if err != nil {
			b.skip(file, "unreadable", slog.String("error", err.Error()))
			continue
		}
		if e.ID == "" {
			b.skip(file, "missing_id")
			continue
		}
		if e.Type == "" {
			b.skip(file, "missing_type")
			continue
		}
		if !seen.Add(e.ID) {
			b.skip(file, "duplicate_id", slog.String("id", e.ID))
			continue
		}
		entries = append(entries, withDefaults(e))
	}

	slices.SortStableFunc(entries, func(a, b Entry) int { return compare(a.Node, b.Node) })

	data, err := storage.EncodeJSON(entries)
	if err != nil {
		return nil, err
	}
	if err := b.store.WriteManifest(data); err != nil {
		return nil, fmt.Errorf("manifest: write: %w", err)
	}

	metrics.ManifestNodes.Set(float64(len(entries)))
	b.logger.Info("manifest: generated", slog.Int("nodes", len(entries)))
	return entries, nil
}

func (b *Builder) skip(file, reason string, attrs ...any) {
	metrics.ManifestSkipped.WithLabelValues(reason).Inc()
	args := append([]any{slog.String("file", file), slog.String("reason", reason)}, attrs...)
	b.logger.Warn("manifest: skipping node file", args...)
}

// decode reads a node file field by field. A field whose value has the
// wrong JSON type is left out of the typed view but kept in the record.
func decode(data []byte) (Entry, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Entry{}, err
	}
	if fields == nil {
		return Entry{}, errors.New("node file is not a JSON object")
	}

	var n models.Node
	take(fields, "id", &n.ID)
	take(fields, "title", &n.Title)
	take(fields, "type", &n.Type)
	take(fields, "subtype", &n.Subtype)
	take(fields, "description", &n.Description)
	take(fields, "threads", &n.Threads)
	take(fields, "essayFile", &n.EssayFile)
	take(fields, "created", &n.Created)
	take(fields, "bioText", &n.BioText)

	var x, y float64
	if take(fields, "x", &x) && take(fields, "y", &y) {
		n.X, n.Y = &x, &y
	}
	var visible, hub bool
	if take(fields, "visible_on_landing", &visible) {
		n.VisibleOnLanding = &visible
	}
	if take(fields, "is_hub", &hub) {
		n.IsHub = &hub
	}
	return Entry{Node: n, fields: fields}, nil
}

// take decodes fields[key] into dst and reports whether it held a non-null
// value of the right type. dst is untouched otherwise.
func take[T any](fields map[string]json.RawMessage, key string, dst *T) bool {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

// withDefaults assigns a hash-derived position unless both coordinates are
// numbers and forces landing visibility to a boolean.
func withDefaults(e Entry) Entry {
	if e.X == nil || e.Y == nil {
		x, y := AutoPosition(e.ID)
		e.X, e.Y = &x, &y
		e.fields["x"] = number(x)
		e.fields["y"] = number(y)
	}
	if e.VisibleOnLanding == nil {
		e.VisibleOnLanding = models.Ptr(true)
		e.fields["visible_on_landing"] = json.RawMessage("true")
	}
	return e
}

func number(v float64) json.RawMessage {
	return json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64))
}

// Hash is the sum of the character codes of id.
func Hash(id string) int {
	h := 0
	for _, r := range id {
		h += int(r)
	}
	return h
}

// AutoPosition derives a stable landing position for id: x in [15,85), y in [20,80).
func AutoPosition(id string) (x, y float64) {
	h := Hash(id)
	return float64((h*37)%70 + 15), float64((h*73)%60 + 20)
}

// Sort orders nodes with a valid created date first, newest first, then the
// undated ones. Ties and undated nodes are ordered by id.
func Sort(nodes []models.Node) {
	slices.SortStableFunc(nodes, compare)
}

func compare(a, b models.Node) int {
	da, aok := created(a)
	db, bok := created(b)
	switch {
	case aok && bok:
		if c := db.Compare(da); c != 0 {
			return c
		}
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

func created(n models.Node) (time.Time, bool) {
	if n.Created == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, n.Created)
	return t, err == nil
}
