package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// keySpace namespaces the synthetic keys of collection elements.
var keySpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("strand:collection"))

// Phrase is one rotating line on the landing page.
type Phrase struct {
	Text string  `json:"text"`
	By   *string `json:"by,omitempty"`
}

// Key returns a content-derived identifier. It is never persisted.
func (p Phrase) Key() string {
	return contentKey(p)
}

// Thread is a connection drawn between two nodes on the landing web.
type Thread struct {
	From    string      `json:"from"`
	To      string      `json:"to"`
	Threads []ThreadTag `json:"threads"`
}

// Key returns a content-derived identifier. It is never persisted.
func (t Thread) Key() string {
	return contentKey(t)
}

func contentKey(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return uuid.NewSHA1(keySpace, data).String()
}
