// Package contentservice sequences every content mutation: validate, persist
// the node and its side files, rebuild the manifest, record the change.
package contentservice

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/manifest"
	"github.com/starford/strand/internal/metrics"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/vcs"
)

// Recorder snapshots a change. It must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, c vcs.Change)
}

// Indexer keeps derived search data in step with the content tree.
type Indexer interface {
	IndexNode(n models.Node, essay []byte) error
	RemoveNode(id string) error
	IndexConnections(threads []models.Thread) error
}

// Publisher notifies live clients of changes.
type Publisher interface {
	PublishNodeEvent(kind, id string)
	PublishManifest(count int)
	PublishCollection(name string, length int)
}

// Service coordinates storage, validation, manifest, index and recorder.
// Mutations are serialized; reads go straight to disk.
type Service struct {
	store    storage.Provider
	manifest *manifest.Builder
	recorder Recorder
	index    Indexer
	events   Publisher
	logger   *slog.Logger

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the change recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithIndex sets the search index.
func WithIndex(ix Indexer) Option {
	return func(s *Service) { s.index = ix }
}

// WithPublisher sets the live event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service over store.
func New(store storage.Provider, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.manifest = manifest.NewBuilder(store, s.logger)
	return s
}

// RegenerateManifest rebuilds the manifest on demand.
func (s *Service) RegenerateManifest(ctx context.Context) ([]manifest.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.PublishManifest(len(nodes))
	}
	return nodes, nil
}

func (s *Service) rebuild(ctx context.Context) ([]manifest.Entry, error) {
	return s.manifest.Rebuild(ctx)
}

func (s *Service) record(ctx context.Context, c vcs.Change) {
	if s.recorder != nil {
		s.recorder.Record(ctx, c)
	}
}

func (s *Service) observe(op vcs.Op, entity string, err error) {
	metrics.Mutations.WithLabelValues(string(op), entity, metrics.Status(err)).Inc()
}

func (s *Service) reindex(n models.Node, essay []byte) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexNode(n, essay); err != nil {
		s.logger.Warn("content: index node failed", slog.String("id", n.ID), slog.String("error", err.Error()))
	}
}

func (s *Service) publishNode(kind, id string) {
	if s.events != nil {
		s.events.PublishNodeEvent(kind, id)
	}
}

// essayFor returns the body of n's essay, or nil for other node types.
func (s *Service) essayFor(n models.Node) []byte {
	if n.Type != models.NodeEssay || n.EssayFile == "" {
		return nil
	}
	data, _ := s.store.Read(storage.KindEssays, n.EssayFile)
	return data
}

// ManifestJSON returns the manifest file as stored, generating it first
// when it does not exist yet.
func (s *Service) ManifestJSON(ctx context.Context) ([]byte, error) {
	data, err := s.store.ReadManifest()
	if !errors.Is(err, apperr.ErrNotFound) {
		return data, err
	}
	if _, err := s.RegenerateManifest(ctx); err != nil {
		return nil, err
	}
	return s.store.ReadManifest()
}
