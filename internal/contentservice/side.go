package contentservice

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/vcs"
)

var essayFileRe = regexp.MustCompile(`^[a-z0-9-]+\.md$`)

// GetEssay returns the Markdown body of an essay file.
func (s *Service) GetEssay(_ context.Context, file string) (string, error) {
	if !essayFileRe.MatchString(file) {
		return "", fmt.Errorf("essay file %q: %w", file, apperr.ErrInvalidPath)
	}
	data, err := s.store.Read(storage.KindEssays, file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UpdateEssay replaces the body of an essay file and re-indexes the node that owns it.
func (s *Service) UpdateEssay(ctx context.Context, file, content string) (err error) {
	defer func() { s.observe(vcs.OpUpdate, "essay", err) }()

	if !essayFileRe.MatchString(file) {
		return fmt.Errorf("essay file %q: %w", file, apperr.ErrInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Write(storage.KindEssays, file, []byte(content)); err != nil {
		return err
	}

	title := file
	if owner, ok := s.essayOwner(file); ok {
		title = owner.Title
		s.reindex(owner, []byte(content))
		s.publishNode("updated", owner.ID)
	}
	s.record(ctx, vcs.Change{Op: vcs.OpUpdate, ContentType: string(models.NodeEssay), Title: title})
	return nil
}

// essayOwner finds the essay node whose essayFile is file.
func (s *Service) essayOwner(file string) (models.Node, bool) {
	ids, err := s.store.List(storage.KindNodes)
	if err != nil {
		return models.Node{}, false
	}
	for _, id := range ids {
		n, err := storage.ReadJSON[models.Node](s.store, storage.KindNodes, id)
		if err != nil {
			continue
		}
		if n.Type == models.NodeEssay && n.EssayFile == file {
			return n, true
		}
	}
	s.logger.Debug("content: essay has no owning node", slog.String("file", file))
	return models.Node{}, false
}

// GetCuriosity reads the side record of a curiosity node.
func (s *Service) GetCuriosity(_ context.Context, id string) (*models.CuriosityData, error) {
	d, err := storage.ReadJSON[models.CuriosityData](s.store, storage.KindCuriosities, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDurational reads the side record of a durational node.
func (s *Service) GetDurational(_ context.Context, id string) (*models.DurationalData, error) {
	d, err := storage.ReadJSON[models.DurationalData](s.store, storage.KindDurational, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
