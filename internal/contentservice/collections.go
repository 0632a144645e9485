package contentservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/validation"
	"github.com/starford/strand/internal/vcs"
)

const phraseTitleLen = 50

// keyed elements expose a content-derived key used to detect stale indexes.
type keyed interface {
	Key() string
}

// list describes one positional collection file.
type list[T keyed] struct {
	coll     storage.Collection
	entity   string
	plural   string
	validate func(T) validation.Result
	title    func(T) string
	changed  func(s *Service, items []T)
}

var phrases = list[models.Phrase]{
	coll:     storage.CollectionPhrases,
	entity:   "phrase",
	plural:   "phrases",
	validate: validation.Phrase,
	title:    func(p models.Phrase) string { return truncate(p.Text, phraseTitleLen) },
}

var connections = list[models.Thread]{
	coll:     storage.CollectionConnections,
	entity:   "connection",
	plural:   "connections",
	validate: validation.Thread,
	title:    func(t models.Thread) string { return t.From + " -> " + t.To },
	changed: func(s *Service, items []models.Thread) {
		if s.index == nil {
			return
		}
		if err := s.index.IndexConnections(items); err != nil {
			s.logger.Warn("content: index connections failed", slog.String("error", err.Error()))
		}
	},
}

// truncate cuts s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ListPhrases returns the phrase list; a missing file is an empty list.
func (s *Service) ListPhrases(_ context.Context) ([]models.Phrase, error) {
	return readList(s, phrases)
}

// ReplacePhrases validates every phrase and replaces the whole list.
func (s *Service) ReplacePhrases(ctx context.Context, items []models.Phrase) ([]models.Phrase, error) {
	return replaceList(ctx, s, phrases, items)
}

// AddPhrase appends one phrase.
func (s *Service) AddPhrase(ctx context.Context, p models.Phrase) ([]models.Phrase, error) {
	return addToList(ctx, s, phrases, p)
}

// DeletePhrase removes the phrase at index. A non-empty expectKey must match
// the key of the phrase currently at index.
func (s *Service) DeletePhrase(ctx context.Context, index int, expectKey string) ([]models.Phrase, error) {
	return deleteFromList(ctx, s, phrases, index, expectKey)
}

// ListThreads returns the connection list; a missing file is an empty list.
func (s *Service) ListThreads(_ context.Context) ([]models.Thread, error) {
	return readList(s, connections)
}

// ReplaceThreads validates every connection and replaces the whole list.
func (s *Service) ReplaceThreads(ctx context.Context, items []models.Thread) ([]models.Thread, error) {
	return replaceList(ctx, s, connections, items)
}

// AddThread appends one connection.
func (s *Service) AddThread(ctx context.Context, t models.Thread) ([]models.Thread, error) {
	return addToList(ctx, s, connections, t)
}

// DeleteThread removes the connection at index, guarded like DeletePhrase.
func (s *Service) DeleteThread(ctx context.Context, index int, expectKey string) ([]models.Thread, error) {
	return deleteFromList(ctx, s, connections, index, expectKey)
}

func readList[T keyed](s *Service, l list[T]) ([]T, error) {
	raw, err := s.store.ReadCollection(l.coll)
	if errors.Is(err, apperr.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", l.coll, apperr.ErrIOFailure, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// writeList persists items, first copying the current file to the backup
// root when the write discards existing elements.
func writeList[T keyed](s *Service, l list[T], items []T, backup bool) error {
	if backup {
		if _, err := s.store.BackupCollection(l.coll); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	data, err := storage.EncodeJSON(items)
	if err != nil {
		return err
	}
	return s.store.WriteCollection(l.coll, data)
}

func replaceList[T keyed](ctx context.Context, s *Service, l list[T], items []T) (_ []T, err error) {
	defer func() { s.observe(vcs.OpUpdate, l.plural, err) }()

	if items == nil {
		items = []T{}
	}
	for i, item := range items {
		prefix := fmt.Sprintf("%s %d validation failed", capitalize(l.entity), i+1)
		if err := l.validate(item).ErrWithPrefix(prefix); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeList(s, l, items, true); err != nil {
		return nil, err
	}
	afterList(ctx, s, l, items, vcs.Change{
		Op:          vcs.OpUpdate,
		ContentType: l.plural,
		Title:       fmt.Sprintf("%d %s", len(items), l.plural),
	})
	return items, nil
}

func addToList[T keyed](ctx context.Context, s *Service, l list[T], item T) (_ []T, err error) {
	defer func() { s.observe(vcs.OpCreate, l.entity, err) }()

	if err := l.validate(item).Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := readList(s, l)
	if err != nil {
		return nil, err
	}
	items = append(items, item)
	if err := writeList(s, l, items, false); err != nil {
		return nil, err
	}
	afterList(ctx, s, l, items, vcs.Change{Op: vcs.OpCreate, ContentType: l.entity, Title: l.title(item)})
	return items, nil
}

func deleteFromList[T keyed](ctx context.Context, s *Service, l list[T], index int, expectKey string) (_ []T, err error) {
	defer func() { s.observe(vcs.OpDelete, l.entity, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := readList(s, l)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("%s index %d: %w", l.entity, index, apperr.ErrIndexOutOfRange)
	}
	removed := items[index]
	if expectKey != "" && removed.Key() != expectKey {
		return nil, fmt.Errorf("%s %d changed since it was read: %w", l.entity, index, apperr.ErrConflict)
	}

	items = slices.Delete(items, index, index+1)
	if err := writeList(s, l, items, true); err != nil {
		return nil, err
	}
	afterList(ctx, s, l, items, vcs.Change{Op: vcs.OpDelete, ContentType: l.entity, Title: l.title(removed)})
	return items, nil
}

// afterList runs the post-write steps shared by every list mutation.
func afterList[T keyed](ctx context.Context, s *Service, l list[T], items []T, c vcs.Change) {
	if l.changed != nil {
		l.changed(s, items)
	}
	s.record(ctx, c)
	if s.events != nil {
		s.events.PublishCollection(l.plural, len(items))
	}
	s.logger.Info("content: list updated", slog.String("list", l.plural), slog.Int("length", len(items)))
}

// refreshList re-announces a collection that changed on disk.
func (s *Service) refreshList(c storage.Collection) {
	switch c {
	case storage.CollectionPhrases:
		items, err := readList(s, phrases)
		if err == nil && s.events != nil {
			s.events.PublishCollection(phrases.plural, len(items))
		}
	case storage.CollectionConnections:
		items, err := readList(s, connections)
		if err != nil {
			return
		}
		connections.changed(s, items)
		if s.events != nil {
			s.events.PublishCollection(connections.plural, len(items))
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
