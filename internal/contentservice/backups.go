package contentservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/strand/internal/backup"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/vcs"
)

// ListBackups returns every backup in the backup root, newest first.
func (s *Service) ListBackups(_ context.Context) ([]backup.Entry, error) {
	return backup.List(s.store.BackupRoot())
}

// RestoreBackup puts backup name back in place, rebuilds the manifest and
// refreshes whatever derived data the restored file feeds.
func (s *Service) RestoreBackup(ctx context.Context, name string) (_ *backup.Restored, err error) {
	defer func() { s.observe(vcs.OpUpdate, "backup", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := backup.Restore(s.store, name)
	if err != nil {
		return nil, err
	}

	nodes, err := s.rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup %q restored but manifest rebuild failed: %w", name, err)
	}

	switch res.Scope {
	case string(storage.KindNodes):
		if n, err := storage.ReadJSON[models.Node](s.store, storage.KindNodes, res.ID); err == nil {
			s.reindex(n, s.essayFor(n))
			s.publishNode("updated", n.ID)
		}
	case string(storage.KindEssays):
		if owner, ok := s.essayOwner(res.ID); ok {
			essay, _ := s.store.Read(storage.KindEssays, res.ID)
			s.reindex(owner, essay)
			s.publishNode("updated", owner.ID)
		}
	case backup.ScopeCollection:
		s.refreshList(storage.Collection(res.ID))
	}
	if s.events != nil {
		s.events.PublishManifest(len(nodes))
	}

	s.record(ctx, vcs.Change{Op: vcs.OpUpdate, ContentType: res.Scope, Title: "restore " + name})
	s.logger.Info("content: backup restored", slog.String("backup", name), slog.String("scope", res.Scope))
	return res, nil
}
