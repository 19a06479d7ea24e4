package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Fingerprint derives the deterministic cache key for a query. The text is
// trimmed and lower-cased so case and surrounding-whitespace variants collide;
// filters are serialized with struct-fixed key order so two semantically equal
// filter sets always hash identically. An empty filter set hashes the same as
// no filters at all.
func Fingerprint(queryText string, filters *FilterSet) string {
	raw := strings.ToLower(strings.TrimSpace(queryText))
	if !filters.IsEmpty() {
		// Field order is fixed by the struct; omitempty drops absent fields,
		// so {people: nil} and {} canonicalize identically.
		data, err := json.Marshal(filters)
		if err == nil {
			raw += string(data)
		}
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
