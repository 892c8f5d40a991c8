// Package objects implements the ingestion pipeline over the store: content
// addressing, batch ingestion with subtree statistics, commit linking, and
// the service surface the calling layer uses.
package objects

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/CanoaPBC/speckle-server/internal/core"
)

// Payload keys with meaning to the ingestion pipeline. closureKey carries
// the caller-supplied descendant depth map and is stripped before storage;
// idKey, when present, is trusted verbatim as the object id.
const (
	idKey      = "id"
	closureKey = "__closure"
)

// HashObject computes the content address of a raw document: a sha256 over
// the canonical JSON of its fields as they will be stored, excluding the id
// itself and the transient closure map. Map keys serialize in sorted order,
// so identical field content always yields the identical id.
func HashObject(doc core.Document) (string, error) {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == idKey || k == closureKey {
			continue
		}
		stripped[k] = v
	}
	data, err := json.Marshal(stripped)
	if err != nil {
		return "", fmt.Errorf("serializing object: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
