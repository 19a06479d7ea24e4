package search

import (
	"context"

	"github.com/caselight/caselight/internal/domain"
)

// ResultCache stores serialized search results keyed by query fingerprint.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.CachedResult, error)
	Set(ctx context.Context, fingerprint, queryText string, filters *domain.FilterSet, payload []byte) error
}

// DocumentStore is the local vector collection.
type DocumentStore interface {
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, doc *domain.Document, embedding []float32) error
	NearestNeighbor(ctx context.Context, embedding []float32, limit int) ([]domain.Document, error)
}

// RemoteSearcher is the ranked-search fallback provider.
type RemoteSearcher interface {
	Search(ctx context.Context, queryText string, filters *domain.FilterSet, limit int) ([]domain.Document, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AnswerStream yields answer fragments until io.EOF.
type AnswerStream interface {
	Recv() (string, error)
	Close() error
}

// Generator produces grounded answers, complete or streamed.
type Generator interface {
	Generate(ctx context.Context, queryText string, docs []domain.Document) (string, error)
	GenerateStream(ctx context.Context, queryText string, docs []domain.Document) (AnswerStream, error)
}
