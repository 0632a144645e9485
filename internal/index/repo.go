package index

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/strand/internal/models"
	"github.com/starford/strand/internal/parser"
	"github.com/starford/strand/internal/storage"
)

// NodeRow represents a row in the nodes table.
type NodeRow struct {
	ID        string
	Title     string
	Type      string
	Subtype   string
	Threads   []string
	Created   string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult is one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Snippet string `json:"snippet"`
}

// GraphNode is a vertex of the content graph.
type GraphNode struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Threads []string `json:"threads"`
}

// GraphLink is a directed edge of the content graph.
type GraphLink struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Kind    string   `json:"kind"`
	Threads []string `json:"threads"`
}

// Fingerprint identifies one indexed revision of a node and its essay body.
func Fingerprint(n models.Node, essay []byte) string {
	h := sha256.New()
	data, _ := storage.EncodeJSON(n)
	h.Write(data)
	h.Write(essay)
	return hex.EncodeToString(h.Sum(nil))
}

// IndexNode upserts n, using the essay body (if any) for search text and references.
func (db *DB) IndexNode(n models.Node, essay []byte) error {
	threads := make([]string, len(n.Threads))
	for i, t := range n.Threads {
		threads[i] = string(t)
	}
	row := NodeRow{
		ID:        n.ID,
		Title:     n.Title,
		Type:      string(n.Type),
		Subtype:   n.Subtype,
		Threads:   threads,
		Created:   n.Created,
		Checksum:  Fingerprint(n, essay),
		UpdatedAt: time.Now(),
	}

	body := n.Description
	if n.BioText != "" {
		body += "\n" + n.BioText
	}
	var refs []string
	if len(essay) > 0 {
		e := parser.Parse(essay)
		body += "\n" + e.Body
		refs = e.References
	}
	return db.UpsertNode(row, body, refs)
}

// UpsertNode inserts or replaces a node, its FTS entry and its outgoing
// references within a transaction.
func (db *DB) UpsertNode(n NodeRow, body string, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	threadsJSON, _ := json.Marshal(nonNil(n.Threads))
	_, err = tx.Exec(`
		INSERT INTO nodes (id, title, type, subtype, threads, created, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			type       = excluded.type,
			subtype    = excluded.subtype,
			threads    = excluded.threads,
			created    = excluded.created,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, n.Type, n.Subtype, string(threadsJSON), n.Created, n.Checksum, body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert node: %w", err)
	}

	if err := ftsUpsert(tx, n.ID, n.Title, body, n.Threads); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM edges WHERE source = ? AND kind = ?`, n.ID, EdgeReference); err != nil {
		return fmt.Errorf("index: clear references: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO edges (source, target, kind) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare reference insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range refs {
			if _, err := stmt.Exec(n.ID, target, EdgeReference); err != nil {
				return fmt.Errorf("index: insert reference: %w", err)
			}
		}
	}

	return tx.Commit()
}

// RemoveNode drops a node, its FTS entry and its outgoing references.
func (db *DB) RemoveNode(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM edges WHERE source = ? AND kind = ?`, id, EdgeReference); err != nil {
		return fmt.Errorf("index: delete references: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete node: %w", err)
	}
	return tx.Commit()
}

// IndexConnections replaces every connection edge with threads.
func (db *DB) IndexConnections(threads []models.Thread) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM edges WHERE kind = ?`, EdgeConnection); err != nil {
		return fmt.Errorf("index: clear connections: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO edges (source, target, kind, threads) VALUES (?, ?, ?, ?)
		ON CONFLICT(source, target, kind) DO UPDATE SET threads = excluded.threads
	`)
	if err != nil {
		return fmt.Errorf("index: prepare connection insert: %w", err)
	}
	defer stmt.Close()
	for _, t := range threads {
		tags, _ := json.Marshal(nonNil(t.Threads))
		if _, err := stmt.Exec(t.From, t.To, EdgeConnection, string(tags)); err != nil {
			return fmt.Errorf("index: insert connection: %w", err)
		}
	}
	return tx.Commit()
}

// GetChecksum returns the stored fingerprint for a node, or "" if it is not indexed.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM nodes WHERE id = ?`, id).Scan(&cs)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns the fingerprint of every indexed node.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// References returns the ids of nodes whose essays reference target.
func (db *DB) References(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM edges WHERE target = ? AND kind = ? ORDER BY source`, target, EdgeReference)
	if err != nil {
		return nil, fmt.Errorf("index: references: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Graph returns every indexed node and every edge between indexed nodes.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, title, type, threads FROM nodes ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	nodes := []GraphNode{}
	for rows.Next() {
		var n GraphNode
		var threads string
		if err := rows.Scan(&n.ID, &n.Title, &n.Type, &threads); err != nil {
			return nil, nil, err
		}
		n.Threads = decodeTags(threads)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lrows, err := db.conn.Query(`
		SELECT e.source, e.target, e.kind, e.threads
		FROM edges e
		JOIN nodes s ON s.id = e.source
		JOIN nodes t ON t.id = e.target
		ORDER BY e.kind, e.source, e.target
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer lrows.Close()

	links := []GraphLink{}
	for lrows.Next() {
		var l GraphLink
		var threads string
		if err := lrows.Scan(&l.Source, &l.Target, &l.Kind, &threads); err != nil {
			return nil, nil, err
		}
		l.Threads = decodeTags(threads)
		links = append(links, l)
	}
	return nodes, links, lrows.Err()
}

func decodeTags(raw string) []string {
	out := []string{}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
