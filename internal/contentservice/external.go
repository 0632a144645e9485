package contentservice

import (
	"context"
	"log/slog"

	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/watch"
)

// Reconcile brings derived state in line with files changed outside the
// service: the manifest is rebuilt once and each change is re-indexed and
// announced.
func (s *Service) Reconcile(ctx context.Context, changes []watch.Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, err := s.rebuild(ctx)
	if err != nil {
		s.logger.Error("content: reconcile manifest failed", slog.String("error", err.Error()))
		return
	}

	for _, c := range changes {
		switch c.Scope {
		case string(storage.KindNodes):
			s.reconcileNode(c)
		case string(storage.KindEssays):
			if owner, ok := s.essayOwner(c.ID); ok {
				var essay []byte
				if !c.Removed {
					essay, _ = s.store.Read(storage.KindEssays, c.ID)
				}
				s.reindex(owner, essay)
				s.publishNode("updated", owner.ID)
			}
		case watch.ScopeCollection:
			s.refreshList(storage.Collection(c.ID))
		}
	}
	if s.events != nil {
		s.events.PublishManifest(len(nodes))
	}
	s.logger.Info("content: reconciled external changes", slog.Int("changes", len(changes)), slog.Int("nodes", len(nodes)))
}

func (s *Service) reconcileNode(c watch.Change) {
	if c.Removed {
		if s.index != nil {
			if err := s.index.RemoveNode(c.ID); err != nil {
				s.logger.Warn("content: index remove failed", slog.String("id", c.ID), slog.String("error", err.Error()))
			}
		}
		s.publishNode("deleted", c.ID)
		return
	}
	n, err := storage.ReadJSON[models.Node](s.store, storage.KindNodes, c.ID)
	if err != nil || n.ID == "" {
		s.logger.Warn("content: skip unreadable node", slog.String("id", c.ID))
		return
	}
	s.reindex(n, s.essayFor(n))
	s.publishNode("updated", n.ID)
}
