package index

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/starford/strand/internal/apperr"
	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/storage"
)

// Sync brings the index up to date with the content tree:
//   - new or changed nodes (including their essay body) are re-indexed
//   - nodes whose files are gone are removed
//   - connection edges are replaced from connections.json
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) error {
	ids, err := store.List(storage.KindNodes)
	if err != nil {
		return err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	onDisk := make(map[string]struct{}, len(ids))
	for _, file := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := storage.ReadJSON[models.Node](store, storage.KindNodes, file)
		if err != nil || n.ID == "" {
			logger.Warn("index sync: unreadable node", slog.String("file", file))
			continue
		}
		onDisk[n.ID] = struct{}{}

		essay := EssayBody(store, n, logger)
		if checksums[n.ID] == Fingerprint(n, essay) {
			continue
		}
		if err := db.IndexNode(n, essay); err != nil {
			logger.Warn("index sync: index failed", slog.String("id", n.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("index sync: indexed", slog.String("id", n.ID))
		}
	}

	for id := range checksums {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if err := db.RemoveNode(id); err != nil {
			logger.Warn("index sync: remove failed", slog.String("id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("index sync: removed stale", slog.String("id", id))
		}
	}

	raw, err := store.ReadCollection(storage.CollectionConnections)
	if errors.Is(err, apperr.ErrNotFound) {
		return db.IndexConnections(nil)
	}
	if err != nil {
		return err
	}
	var threads []models.Thread
	if err := json.Unmarshal(raw, &threads); err != nil {
		logger.Warn("index sync: unreadable connections", slog.String("error", err.Error()))
		return nil
	}
	return db.IndexConnections(threads)
}

// EssayBody returns the essay text backing n, or nil when n is not an essay
// or the file is missing.
func EssayBody(store storage.Provider, n models.Node, logger *slog.Logger) []byte {
	if n.Type != models.NodeEssay || n.EssayFile == "" {
		return nil
	}
	data, err := store.Read(storage.KindEssays, n.EssayFile)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("index: read essay failed", slog.String("file", n.EssayFile), slog.String("error", err.Error()))
		}
		return nil
	}
	return data
}
