package core

import "strings"

// Document is an opaque object payload. The store never interprets its shape
// beyond the dotted-path accessors below; nested documents are plain
// map[string]any values as produced by JSON decoding.
type Document map[string]any

// Get resolves a dotted path ("a.b.c") against the document. The second
// return value reports whether every segment of the path existed.
func (d Document) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = map[string]any(d)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			if doc, isDoc := current.(Document); isDoc {
				m = map[string]any(doc)
			} else {
				return nil, false
			}
		}
		value, exists := m[part]
		if !exists {
			return nil, false
		}
		current = value
	}
	return current, true
}

// Set writes a value at a dotted path, creating intermediate maps as needed.
// Existing non-map values along the path are replaced.
func (d Document) Set(path string, value any) {
	parts := strings.Split(path, ".")
	m := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			if doc, isDoc := m[part].(Document); isDoc {
				next = map[string]any(doc)
			} else {
				next = make(map[string]any)
			}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// Project builds a new document containing only the requested field paths,
// reassembled into the same nested structure. Paths missing from the source
// document are omitted. The object id is always carried over when present.
func (d Document) Project(fields []string) Document {
	result := make(Document)
	if id, ok := d["id"]; ok {
		result["id"] = id
	}
	for _, field := range fields {
		if value, ok := d.Get(field); ok {
			result.Set(field, value)
		}
	}
	return result
}
