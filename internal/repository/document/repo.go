// Package document implements the local document store over Redis hashes with
// an FT HNSW vector index. Documents warmed from the remote provider are
// stored without a vector field and stay invisible to nearest-neighbor search
// until re-embedded.
package document

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/caselight/caselight/internal/db"
	"github.com/caselight/caselight/internal/domain"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig tunes the vector index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/search.DocumentStore.
type Repo struct {
	store     store
	keyPrefix string
	indexName string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a document repository.
func New(s store, keyPrefix string, vectorDim int) *Repo {
	return &Repo{
		store:     s,
		keyPrefix: keyPrefix + "doc:",
		indexName: keyPrefix + "doc:idx",
		vectorDim: vectorDim,
	}
}

// WithHNSW overrides the HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("probe index %s: %w", r.indexName, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     r.indexName,
		Prefixes: []string{r.keyPrefix},
		Fields: []db.IndexField{
			// efta_id is present on every document, so the index (and
			// Count) covers rows stored without a vector.
			{Name: fieldEftaID, Type: db.IndexFieldTag},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorDim:         r.vectorDim,
				VectorAlgo:        db.VectorHNSW,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && err != db.ErrIndexExists {
		return fmt.Errorf("create index %s: %w", r.indexName, err)
	}
	return nil
}

// Count returns the number of documents in the local collection.
func (r *Repo) Count(ctx context.Context) (int, error) {
	count, err := r.store.SearchCount(ctx, r.indexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Upsert creates or overwrites a document. A nil embedding leaves any
// previously stored vector untouched.
func (r *Repo) Upsert(ctx context.Context, doc *domain.Document, embedding []float32) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrValidation)
	}

	fields, err := docToFields(doc)
	if err != nil {
		return err
	}
	if len(embedding) > 0 {
		if len(embedding) != r.vectorDim {
			return fmt.Errorf("%w: embedding has %d dimensions, index expects %d",
				domain.ErrValidation, len(embedding), r.vectorDim)
		}
		fields[fieldVector] = vectorToBytes(embedding)
	}

	key := r.key(doc.ID)
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	key := r.key(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.Document{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return domain.Document{}, domain.ErrNotFound
	}
	return fieldsToDoc(fields)
}

// NearestNeighbor runs a KNN search and returns documents in similarity order
// with relevance scores attached.
func (r *Repo) NearestNeighbor(ctx context.Context, embedding []float32, limit int) ([]domain.Document, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		Vector:       embedding,
		K:            limit,
		ReturnFields: []string{fieldDoc},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	docs := make([]domain.Document, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		doc, err := fieldsToDoc(entry.Fields)
		if err != nil {
			continue
		}
		doc.RelevanceScore = entry.Score
		doc.MatchType = "semantic"
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *Repo) key(id string) string {
	return r.keyPrefix + id
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
