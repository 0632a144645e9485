package contentservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/manifest"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/validation"
	"github.com/starford/strand/internal/vcs"
)

// Default position of a node created without coordinates.
const defaultCoordinate = 50.0

// CreateNodeInput is a node plus its optional type-specific payload.
type CreateNodeInput struct {
	Node         models.NodePatch          `json:"node"`
	EssayContent *string                   `json:"essayContent,omitempty"`
	Curiosity    *models.CuriosityPayload  `json:"curiosityData,omitempty"`
	Durational   *models.DurationalPayload `json:"durationalData,omitempty"`
}

// UpdateNodeInput has the same shape; absent node fields keep their stored value.
type UpdateNodeInput = CreateNodeInput

// NodeChange is the result of a create or update.
type NodeChange struct {
	Node     models.Node      `json:"node"`
	Manifest []manifest.Entry `json:"manifest"`
	Message  string           `json:"-"`
}

// NodeDeletion is the result of a delete.
type NodeDeletion struct {
	Manifest []manifest.Entry `json:"manifest"`
	Backups  []string         `json:"backups"`
	Count    int              `json:"count"`
	Message  string           `json:"-"`
}

// ListNodes returns every readable node file. Unreadable files are logged and skipped.
func (s *Service) ListNodes(_ context.Context) ([]models.Node, error) {
	ids, err := s.store.List(storage.KindNodes)
	if err != nil {
		return nil, err
	}
	nodes := make([]models.Node, 0, len(ids))
	for _, id := range ids {
		n, err := storage.ReadJSON[models.Node](s.store, storage.KindNodes, id)
		if err != nil {
			s.logger.Warn("content: skip unreadable node", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// GetNode reads one node.
func (s *Service) GetNode(_ context.Context, id string) (*models.Node, error) {
	n, err := storage.ReadJSON[models.Node](s.store, storage.KindNodes, id)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNode applies defaults, validates, writes the node and its side file
// together, then rebuilds the manifest and records the change.
func (s *Service) CreateNode(ctx context.Context, in CreateNodeInput) (_ *NodeChange, err error) {
	defer func() { s.observe(vcs.OpCreate, "node", err) }()

	n := withCreateDefaults(in.Node)
	if err := validation.Node(n).Err(); err != nil {
		return nil, err
	}
	sides, err := sideFiles(n, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Read(storage.KindNodes, n.ID); err == nil {
		return nil, fmt.Errorf("node %q: %w", n.ID, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	entries, err := s.persist(ctx, n, sides)
	if err != nil {
		return nil, err
	}
	s.record(ctx, vcs.Change{Op: vcs.OpCreate, ContentType: string(n.Type), Title: n.Title, Subtype: n.Subtype})
	s.publishNode("created", n.ID)

	s.logger.Info("content: node created", slog.String("id", n.ID), slog.String("type", string(n.Type)))
	return &NodeChange{
		Node:     n,
		Manifest: entries,
		Message:  fmt.Sprintf("Node %q created successfully", n.Title),
	}, nil
}

// UpdateNode merges the supplied fields over the stored node. The id and an
// already assigned essay file never change.
func (s *Service) UpdateNode(ctx context.Context, id string, in UpdateNodeInput) (_ *NodeChange, err error) {
	defer func() { s.observe(vcs.OpUpdate, "node", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := storage.ReadJSON[models.Node](s.store, storage.KindNodes, id)
	if err != nil {
		return nil, err
	}

	n := in.Node.Apply(existing)
	n.ID = existing.ID
	if existing.EssayFile != "" {
		n.EssayFile = existing.EssayFile
	}
	if err := validation.Node(n).Err(); err != nil {
		return nil, err
	}
	sides, err := sideFiles(n, in)
	if err != nil {
		return nil, err
	}

	entries, err := s.persist(ctx, n, sides)
	if err != nil {
		return nil, err
	}
	s.record(ctx, vcs.Change{Op: vcs.OpUpdate, ContentType: string(n.Type), Title: n.Title, Subtype: n.Subtype})
	s.publishNode("updated", n.ID)

	s.logger.Info("content: node updated", slog.String("id", n.ID))
	return &NodeChange{
		Node:     n,
		Manifest: entries,
		Message:  fmt.Sprintf("Node %q updated successfully", n.Title),
	}, nil
}

// DeleteNode backs up and removes the node, then its side files on a best
// effort basis.
func (s *Service) DeleteNode(ctx context.Context, id string) (_ *NodeDeletion, err error) {
	defer func() { s.observe(vcs.OpDelete, "node", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := storage.ReadJSON[models.Node](s.store, storage.KindNodes, id)
	if err != nil {
		return nil, err
	}

	info, err := s.store.Delete(storage.KindNodes, id)
	if err != nil {
		return nil, err
	}
	backups := []string{info.BackupPath}

	for _, side := range ownedFiles(n) {
		info, err := s.store.Delete(side.kind, side.id)
		switch {
		case err == nil:
			backups = append(backups, info.BackupPath)
		case errors.Is(err, apperr.ErrNotFound):
			s.logger.Debug("content: no side file", slog.String("kind", string(side.kind)), slog.String("id", side.id))
		default:
			s.logger.Warn("content: side file delete failed",
				slog.String("kind", string(side.kind)),
				slog.String("id", side.id),
				slog.String("error", err.Error()))
		}
	}

	entries, err := s.rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("node %q deleted but manifest rebuild failed: %w", id, err)
	}
	if s.index != nil {
		if err := s.index.RemoveNode(id); err != nil {
			s.logger.Warn("content: index remove failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	s.record(ctx, vcs.Change{Op: vcs.OpDelete, ContentType: string(n.Type), Title: n.Title, Subtype: n.Subtype})
	s.publishNode("deleted", id)

	s.logger.Info("content: node deleted", slog.String("id", id), slog.Int("backups", len(backups)))
	return &NodeDeletion{
		Manifest: entries,
		Backups:  backups,
		Count:    len(backups),
		Message:  fmt.Sprintf("Node %q deleted successfully (%d backup(s) created)", n.Title, len(backups)),
	}, nil
}

// persist writes the node and its side files in one transaction, rebuilds
// the manifest and refreshes the index.
func (s *Service) persist(ctx context.Context, n models.Node, sides []sideFile) ([]manifest.Entry, error) {
	data, err := storage.EncodeJSON(n)
	if err != nil {
		return nil, err
	}
	tx := s.store.Begin()
	if err := tx.Stage(storage.KindNodes, n.ID, data); err != nil {
		tx.Rollback()
		return nil, err
	}
	var essay []byte
	for _, f := range sides {
		if err := tx.Stage(f.kind, f.id, f.data); err != nil {
			tx.Rollback()
			return nil, err
		}
		if f.kind == storage.KindEssays {
			essay = f.data
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	entries, err := s.rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("node %q saved but manifest rebuild failed: %w", n.ID, err)
	}

	if essay == nil {
		essay = s.essayFor(n)
	}
	s.reindex(n, essay)
	return entries, nil
}

func withCreateDefaults(p models.NodePatch) models.Node {
	n := p.Apply(models.Node{})
	if n.Threads == nil {
		n.Threads = []models.ThreadTag{}
	}
	if n.VisibleOnLanding == nil {
		n.VisibleOnLanding = models.Ptr(true)
	}
	if n.X == nil {
		n.X = models.Ptr(defaultCoordinate)
	}
	if n.Y == nil {
		n.Y = models.Ptr(defaultCoordinate)
	}
	return n
}

type sideFile struct {
	kind storage.Kind
	id   string
	data []byte
}

// sideFiles derives and validates the type-specific files for a validated
// node. Side records mirror the node's threads and visibility.
func sideFiles(n models.Node, in CreateNodeInput) ([]sideFile, error) {
	switch {
	case n.Type == models.NodeEssay && in.EssayContent != nil:
		return []sideFile{{kind: storage.KindEssays, id: n.EssayFile, data: []byte(*in.EssayContent)}}, nil

	case n.Type == models.NodeCuriosity && in.Curiosity != nil:
		connected := in.Curiosity.Connected
		if connected == nil {
			connected = []models.ConnectedItem{}
		}
		d := models.CuriosityData{
			ID:               n.ID,
			Title:            n.Title,
			Central:          in.Curiosity.Central,
			Connected:        connected,
			Threads:          n.Threads,
			VisibleOnLanding: n.VisibleOnLanding,
		}
		if err := validation.Curiosity(d).ErrWithPrefix("Invalid curiosity data"); err != nil {
			return nil, err
		}
		data, err := storage.EncodeJSON(d)
		if err != nil {
			return nil, err
		}
		return []sideFile{{kind: storage.KindCuriosities, id: n.ID, data: data}}, nil

	case n.Type == models.NodeDurational && in.Durational != nil:
		d := models.DurationalData{
			ID:          n.ID,
			Title:       n.Title,
			Type:        models.NodeDurational,
			Subtype:     in.Durational.Subtype,
			Description: in.Durational.Description,
			Media:       in.Durational.Media,
			Commentary:  in.Durational.Commentary,
			Created:     n.Created,
			Threads:     n.Threads,
		}
		if err := validation.Durational(d).ErrWithPrefix("Invalid durational data"); err != nil {
			return nil, err
		}
		data, err := storage.EncodeJSON(d)
		if err != nil {
			return nil, err
		}
		return []sideFile{{kind: storage.KindDurational, id: n.ID, data: data}}, nil
	}
	return nil, nil
}

type ownedFile struct {
	kind storage.Kind
	id   string
}

// ownedFiles lists the side files a node of n's type may own.
func ownedFiles(n models.Node) []ownedFile {
	switch n.Type {
	case models.NodeEssay:
		if n.EssayFile != "" {
			return []ownedFile{{storage.KindEssays, n.EssayFile}}
		}
	case models.NodeCuriosity:
		return []ownedFile{{storage.KindCuriosities, n.ID}}
	case models.NodeDurational:
		return []ownedFile{{storage.KindDurational, n.ID}}
	}
	return nil
}
