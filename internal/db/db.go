// Package db defines the storage facade over Redis 8. Consumers depend on the
// narrow sub-interfaces, not the full Store.
package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// KNNQuery describes a vector nearest-neighbor search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchEntry is one hit from FT.SEARCH.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult holds FT.SEARCH hits with the index-wide total.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
