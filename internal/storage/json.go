package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeJSON renders v with 2-space indentation and a trailing newline.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("storage: encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadJSON reads entity id of kind and decodes it into a T.
func ReadJSON[T any](p Provider, kind Kind, id string) (T, error) {
	var out T
	data, err := p.Read(kind, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("storage: decode %s/%s: %w", kind, id, err)
	}
	return out, nil
}

// WriteJSON encodes v and atomically replaces entity id of kind.
func WriteJSON(p Provider, kind Kind, id string, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	return p.Write(kind, id, data)
}
