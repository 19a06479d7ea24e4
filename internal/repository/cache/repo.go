// Package cache implements the result cache over Redis hashes. One hash per
// query fingerprint; expiry is enforced by the expires_at predicate on read,
// not by the sweep's timing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/domain"
	"github.com/caselight/caselight/internal/metrics"
)

// store is the consumer interface for the result cache (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Hash field names of a cache row.
const (
	fieldQueryText = "query_text"
	fieldFilters   = "filters"
	fieldPayload   = "payload"
	fieldHitCount  = "hit_count"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// Repo implements usecase/search.ResultCache.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New creates a result cache repository. ttl is fixed per deployment.
func New(s store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Repo {
	return &Repo{
		store:  s,
		prefix: keyPrefix + "cache:",
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the cached result for a fingerprint, or domain.ErrNotFound when
// the row is absent or expired. On a hit the row's hit count is bumped
// best-effort; a failed bump never fails the read.
func (r *Repo) Get(ctx context.Context, fingerprint string) (*domain.CachedResult, error) {
	key := r.key(fingerprint)

	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	row, err := parseRow(fields)
	if err != nil {
		return nil, fmt.Errorf("parse cache row %s: %w", key, err)
	}
	if row.Expired(r.now()) {
		return nil, domain.ErrNotFound
	}

	if err := r.store.HIncrBy(ctx, key, fieldHitCount, 1); err != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("cache_bump").Inc()
		r.logger.Warn("cache hit-count bump failed", zap.String("key", key), zap.Error(err))
	}

	return row, nil
}

// Set upserts a cache row: a new row starts with hit count 0, an overwritten
// row keeps counting and gets a fresh expiry.
func (r *Repo) Set(
	ctx context.Context, fingerprint, queryText string,
	filters *domain.FilterSet, payload []byte,
) error {
	key := r.key(fingerprint)
	now := r.now()

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("exists %s: %w", key, err)
	}

	fields := map[string]string{
		fieldQueryText: queryText,
		fieldPayload:   string(payload),
		fieldExpiresAt: strconv.FormatInt(now.Add(r.ttl).UnixMilli(), 10),
	}
	if !filters.IsEmpty() {
		data, err := json.Marshal(filters)
		if err != nil {
			return fmt.Errorf("marshal filters: %w", err)
		}
		fields[fieldFilters] = string(data)
	}
	if !exists {
		fields[fieldCreatedAt] = strconv.FormatInt(now.UnixMilli(), 10)
		fields[fieldHitCount] = "0"
	}

	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}

	if exists {
		if err := r.store.HIncrBy(ctx, key, fieldHitCount, 1); err != nil {
			metrics.BestEffortFailuresTotal.WithLabelValues("cache_bump").Inc()
			r.logger.Warn("cache hit-count bump failed", zap.String("key", key), zap.Error(err))
		}
	}

	return nil
}

// Sweep deletes all expired rows and returns the number removed. Runs off the
// request path; safe to repeat.
func (r *Repo) Sweep(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan cache keys: %w", err)
	}

	now := r.now()
	deleted := 0
	for _, key := range keys {
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		expiresAt, err := parseMilli(fields[fieldExpiresAt])
		if err != nil {
			continue
		}
		if expiresAt.After(now) {
			continue
		}
		if err := r.store.Del(ctx, key); err != nil {
			r.logger.Warn("cache sweep delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		deleted++
	}

	return deleted, nil
}

func (r *Repo) key(fingerprint string) string {
	return r.prefix + fingerprint
}

func parseRow(fields map[string]string) (*domain.CachedResult, error) {
	expiresAt, err := parseMilli(fields[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at: %w", err)
	}
	createdAt, err := parseMilli(fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}

	row := &domain.CachedResult{
		QueryText: fields[fieldQueryText],
		Payload:   []byte(fields[fieldPayload]),
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	if hits := fields[fieldHitCount]; hits != "" {
		n, err := strconv.ParseInt(hits, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hit_count: %w", err)
		}
		row.HitCount = n
	}

	if raw := fields[fieldFilters]; raw != "" {
		var f domain.FilterSet
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("invalid filters: %w", err)
		}
		row.Filters = &f
	}

	return row, nil
}

func parseMilli(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
