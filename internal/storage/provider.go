// Package storage is the only component that touches content paths on disk.
package storage

import "github.com/starford/strand/internal/models"

// Kind names a per-entity directory under the content root.
type Kind string

const (
	KindNodes       Kind = "nodes"
	KindEssays      Kind = "essays"
	KindCuriosities Kind = "curiosities"
	KindDurational  Kind = "durational"
)

// Kinds lists every per-entity directory.
var Kinds = []Kind{KindNodes, KindEssays, KindCuriosities, KindDurational}

// Collection names a single-file ordered list under the content root.
type Collection string

const (
	CollectionPhrases     Collection = "phrases"
	CollectionConnections Collection = "connections"
)

// ManifestFile is the generated manifest inside the nodes directory.
const ManifestFile = "landing-nodes.json"

// Provider is the interface for content file operations.
type Provider interface {
	// Read returns the raw bytes of entity id of the given kind.
	Read(kind Kind, id string) ([]byte, error)
	// Write atomically replaces entity id of the given kind.
	Write(kind Kind, id string, data []byte) error
	// Delete backs up and then removes entity id of the given kind.
	Delete(kind Kind, id string) (*models.BackupInfo, error)
	// List returns the ids of every entity of the given kind.
	List(kind Kind) ([]string, error)
	// Backup copies entity id of the given kind into the backup root.
	Backup(kind Kind, id string) (*models.BackupInfo, error)
	// BackupRoot returns the directory that holds backups.
	BackupRoot() string
	// Begin starts a multi-file write that commits all files or none.
	Begin() *Tx

	// ReadCollection returns the raw bytes of a collection file.
	ReadCollection(c Collection) ([]byte, error)
	// WriteCollection atomically replaces a collection file.
	WriteCollection(c Collection, data []byte) error
	// BackupCollection copies a collection file into the backup root.
	BackupCollection(c Collection) (*models.BackupInfo, error)

	// ReadManifest returns the generated manifest.
	ReadManifest() ([]byte, error)
	// WriteManifest atomically replaces the generated manifest.
	WriteManifest(data []byte) error
}

var _ Provider = (*FS)(nil)
