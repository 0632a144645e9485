// Package models defines the content types managed by strand.
package models

// NodeType is the closed set of node kinds.
type NodeType string

const (
	NodeEssay      NodeType = "essay"
	NodeMusic      NodeType = "music"
	NodeMovement   NodeType = "movement"
	NodeCuriosity  NodeType = "curiosity"
	NodeDurational NodeType = "durational"
	NodeBio        NodeType = "bio"
)

// NodeTypes lists every valid node type.
var NodeTypes = []NodeType{NodeEssay, NodeMusic, NodeMovement, NodeCuriosity, NodeDurational, NodeBio}

// Valid reports whether t is one of NodeTypes.
func (t NodeType) Valid() bool {
	for _, v := range NodeTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Node is the canonical content unit, stored as nodes/<id>.json.
// X, Y and VisibleOnLanding may be absent in a node file; the manifest always fills them.
type Node struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Type             NodeType    `json:"type"`
	Subtype          string      `json:"subtype,omitempty"`
	Description      string      `json:"description,omitempty"`
	Threads          []ThreadTag `json:"threads"`
	VisibleOnLanding *bool       `json:"visible_on_landing,omitempty"`
	X                *float64    `json:"x,omitempty"`
	Y                *float64    `json:"y,omitempty"`
	IsHub            *bool       `json:"is_hub,omitempty"`
	EssayFile        string      `json:"essayFile,omitempty"`
	Created          string      `json:"created,omitempty"`
	BioText          string      `json:"bioText,omitempty"`
}

// Visible returns the effective landing visibility (absent means visible).
func (n Node) Visible() bool {
	return n.VisibleOnLanding == nil || *n.VisibleOnLanding
}

// NodePatch is a partial node as submitted by an editor. Nil fields are absent.
type NodePatch struct {
	ID               *string     `json:"id,omitempty"`
	Title            *string     `json:"title,omitempty"`
	Type             *NodeType   `json:"type,omitempty"`
	Subtype          *string     `json:"subtype,omitempty"`
	Description      *string     `json:"description,omitempty"`
	Threads          []ThreadTag `json:"threads,omitempty"`
	VisibleOnLanding *bool       `json:"visible_on_landing,omitempty"`
	X                *float64    `json:"x,omitempty"`
	Y                *float64    `json:"y,omitempty"`
	IsHub            *bool       `json:"is_hub,omitempty"`
	EssayFile        *string     `json:"essayFile,omitempty"`
	Created          *string     `json:"created,omitempty"`
	BioText          *string     `json:"bioText,omitempty"`
}

// Apply shallow-merges the present fields of p over base and returns the result.
func (p NodePatch) Apply(base Node) Node {
	n := base
	if p.ID != nil {
		n.ID = *p.ID
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Subtype != nil {
		n.Subtype = *p.Subtype
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Threads != nil {
		n.Threads = append(make([]ThreadTag, 0, len(p.Threads)), p.Threads...)
	}
	if p.VisibleOnLanding != nil {
		n.VisibleOnLanding = Ptr(*p.VisibleOnLanding)
	}
	if p.X != nil {
		n.X = Ptr(*p.X)
	}
	if p.Y != nil {
		n.Y = Ptr(*p.Y)
	}
	if p.IsHub != nil {
		n.IsHub = Ptr(*p.IsHub)
	}
	if p.EssayFile != nil {
		n.EssayFile = *p.EssayFile
	}
	if p.Created != nil {
		n.Created = *p.Created
	}
	if p.BioText != nil {
		n.BioText = *p.BioText
	}
	return n
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// BackupInfo describes a copy taken before a destructive write.
type BackupInfo struct {
	OriginalPath string `json:"originalPath"`
	BackupPath   string `json:"backupPath"`
	Timestamp    string `json:"timestamp"`
}
