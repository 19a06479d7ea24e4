package domain

import (
	"time"

	"github.com/google/uuid"
)

// SearchResult is the full outcome of one search invocation. QueryID is fresh
// per invocation even when the payload came from the cache.
type SearchResult struct {
	QueryID      uuid.UUID  `json:"query_id"`
	Query        string     `json:"query"`
	AIAnswer     AIAnswer   `json:"ai_answer"`
	Documents    []Document `json:"documents"`
	TotalResults int        `json:"total_results"`
	SearchTimeMs int64      `json:"search_time_ms"`
	Cached       bool       `json:"cached"`
}

// NewSearchResult assembles a freshly computed result.
func NewSearchResult(query string, answer AIAnswer, docs []Document, elapsed time.Duration) SearchResult {
	return SearchResult{
		QueryID:      uuid.New(),
		Query:        query,
		AIAnswer:     answer,
		Documents:    docs,
		TotalResults: len(docs),
		SearchTimeMs: elapsed.Milliseconds(),
	}
}

// CachedResult is one result-cache row, keyed by fingerprint.
type CachedResult struct {
	QueryText string
	Filters   *FilterSet
	Payload   []byte
	HitCount  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the row is past its expiry at the given instant.
func (c *CachedResult) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
