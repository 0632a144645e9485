package index

import (
	"context"

	"github.com/starford/strand/internal/models"
)

// NodeIndex is the read and write surface of the index.
type NodeIndex interface {
	IndexNode(n models.Node, essay []byte) error
	RemoveNode(id string) error
	IndexConnections(threads []models.Thread) error
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	References(target string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ NodeIndex = (*DB)(nil)
