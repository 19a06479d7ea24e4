// Package search orchestrates a query across the result cache, the local
// vector collection, and the remote ranked-search provider, then grounds an
// AI answer in the merged documents.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/domain"
	"github.com/caselight/caselight/internal/metrics"
)

// remoteOverfetch is the multiplier applied to the requested limit when
// querying the remote provider, so dedup against local hits still leaves
// enough documents.
const remoteOverfetch = 3

// Config tunes the orchestration thresholds.
type Config struct {
	// LocalMinDocs is the minimum collection size before local vector
	// search is consulted at all.
	LocalMinDocs int
	// ContextWindow is how many top documents ground the AI answer.
	ContextWindow int
	// RemoteMaxLimit caps the overfetched remote limit.
	RemoteMaxLimit int
}

// Service runs the search pipeline.
type Service struct {
	cache  ResultCache
	store  DocumentStore
	remote RemoteSearcher
	embed  Embedder
	gen    Generator
	cfg    Config
	logger *zap.Logger

	now func() time.Time
}

// New creates a search service.
func New(cache ResultCache, store DocumentStore, remote RemoteSearcher,
	embed Embedder, gen Generator, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		cache:  cache,
		store:  store,
		remote: remote,
		embed:  embed,
		gen:    gen,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Search executes the full pipeline for one query: cache lookup, document
// retrieval, answer generation, cache write.
func (s *Service) Search(ctx context.Context, query *domain.Query) (*domain.SearchResult, error) {
	start := s.now()
	fingerprint := domain.Fingerprint(query.Text(), query.Filters())

	if result := s.cacheLookup(ctx, fingerprint); result != nil {
		result.SearchTimeMs = s.now().Sub(start).Milliseconds()
		metrics.SearchesTotal.WithLabelValues("single", "hit").Inc()
		metrics.SearchDuration.WithLabelValues("single").Observe(s.now().Sub(start).Seconds())
		return result, nil
	}

	docs, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	answer, err := s.answer(ctx, query.Text(), docs)
	if err != nil {
		return nil, err
	}

	result := domain.NewSearchResult(query.Text(), answer, docs, s.now().Sub(start))
	s.cacheWrite(ctx, fingerprint, query, &result)

	metrics.SearchesTotal.WithLabelValues("single", "miss").Inc()
	metrics.SearchDuration.WithLabelValues("single").Observe(s.now().Sub(start).Seconds())
	return &result, nil
}

// cacheLookup returns the cached result for a fingerprint, or nil on miss.
// Cache failures degrade to a miss, they never fail the search.
func (s *Service) cacheLookup(ctx context.Context, fingerprint string) *domain.SearchResult {
	row, err := s.cache.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			metrics.BestEffortFailuresTotal.WithLabelValues("cache_read").Inc()
			s.logger.Warn("cache read failed", zap.Error(err))
		}
		return nil
	}

	var result domain.SearchResult
	if err := json.Unmarshal(row.Payload, &result); err != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("cache_read").Inc()
		s.logger.Warn("cache payload corrupt", zap.Error(err))
		return nil
	}

	// Each invocation gets its own identity even when the payload is shared.
	result.QueryID = uuid.New()
	result.Cached = true
	return &result
}

func (s *Service) cacheWrite(ctx context.Context, fingerprint string, query *domain.Query, result *domain.SearchResult) {
	payload, err := json.Marshal(result)
	if err == nil {
		err = s.cache.Set(ctx, fingerprint, query.Text(), query.Filters(), payload)
	}
	if err != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("cache_write").Inc()
		s.logger.Warn("cache write failed", zap.Error(err))
	}
}

// retrieve gathers documents for a query: local vector search when the
// collection is large enough, remote ranked search to fill the shortfall,
// merged with local hits first and deduplicated by document ID.
func (s *Service) retrieve(ctx context.Context, query *domain.Query) ([]domain.Document, error) {
	local, err := s.searchLocal(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(local) >= query.Limit() {
		return local[:query.Limit()], nil
	}

	remote, err := s.searchRemote(ctx, query)
	if err != nil {
		return nil, err
	}
	s.warmLocal(ctx, remote)

	return mergeDocuments(local, remote, query.Limit()), nil
}

// searchLocal runs vector search against the local collection. Unlike the
// cache and warm-upsert paths, failures here are not best-effort: the
// embedder and the store are load-bearing collaborators, so their errors
// propagate and fail the search.
func (s *Service) searchLocal(ctx context.Context, query *domain.Query) ([]domain.Document, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("local document count: %w", err)
	}
	if count <= s.cfg.LocalMinDocs {
		return nil, nil
	}

	vector, err := s.embed.Embed(ctx, query.Text())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := s.store.NearestNeighbor(ctx, vector, query.Limit())
	if err != nil {
		return nil, fmt.Errorf("local vector search: %w", err)
	}
	return docs, nil
}

func (s *Service) searchRemote(ctx context.Context, query *domain.Query) ([]domain.Document, error) {
	limit := query.Limit() * remoteOverfetch
	if limit > s.cfg.RemoteMaxLimit {
		limit = s.cfg.RemoteMaxLimit
	}

	docs, err := s.remote.Search(ctx, query.Text(), query.Filters(), limit)
	if err != nil {
		return nil, fmt.Errorf("remote search: %w", err)
	}
	return docs, nil
}

// warmLocal upserts remote documents into the local collection without
// vectors, so they are countable immediately and embeddable later. Failures
// are swallowed.
func (s *Service) warmLocal(ctx context.Context, docs []domain.Document) {
	for i := range docs {
		if err := s.store.Upsert(ctx, &docs[i], nil); err != nil {
			metrics.BestEffortFailuresTotal.WithLabelValues("warm_upsert").Inc()
			s.logger.Warn("warm upsert failed",
				zap.String("document_id", docs[i].ID),
				zap.Error(err))
		}
	}
}

// mergeDocuments concatenates local hits before remote hits, drops duplicate
// IDs keeping the first occurrence, and trims to limit.
func mergeDocuments(local, remote []domain.Document, limit int) []domain.Document {
	merged := make([]domain.Document, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))
	for _, d := range local {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		merged = append(merged, d)
	}
	for _, d := range remote {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		merged = append(merged, d)
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// answer generates the grounded answer from the top context documents and
// derives their citations.
func (s *Service) answer(ctx context.Context, queryText string, docs []domain.Document) (domain.AIAnswer, error) {
	contextDocs := s.contextWindow(docs)
	if len(contextDocs) == 0 {
		return domain.AIAnswer{Citations: []domain.Citation{}}, nil
	}

	text, err := s.gen.Generate(ctx, queryText, contextDocs)
	if err != nil {
		return domain.AIAnswer{}, fmt.Errorf("generate answer: %w", err)
	}

	citations := make([]domain.Citation, 0, len(contextDocs))
	for i := range contextDocs {
		citations = append(citations, domain.NewCitation(&contextDocs[i]))
	}
	return domain.AIAnswer{Text: text, Citations: citations}, nil
}

func (s *Service) contextWindow(docs []domain.Document) []domain.Document {
	if len(docs) > s.cfg.ContextWindow {
		return docs[:s.cfg.ContextWindow]
	}
	return docs
}
