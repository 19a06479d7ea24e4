// Package duggan is the HTTP client for the DugganUSA ranked-search API, the
// remote fallback when the local collection is too small to answer a query.
package duggan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/domain"
	"github.com/caselight/caselight/internal/metrics"
)

const (
	serviceName = "DugganUSA API"

	maxAttempts     = 3
	backoffBase     = time.Second
	backoffCap      = 10 * time.Second
	previewFallback = 300
)

// Client talks to the DugganUSA search endpoint with bounded retries.
type Client struct {
	baseURL string
	index   string
	http    *http.Client
	logger  *zap.Logger

	// overridable in tests
	backoff func(retry int) time.Duration
}

// New creates a client for the given base URL and index name.
func New(baseURL, index string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		backoff: backoff,
	}
}

// Search runs a ranked search against the remote provider. Transient failures
// are retried with exponential backoff; exhaustion surfaces as an
// external-service error.
func (c *Client) Search(ctx context.Context, queryText string, filters *domain.FilterSet, limit int) ([]domain.Document, error) {
	q := url.Values{}
	q.Set("q", queryText)
	q.Set("indexes", c.index)
	q.Set("limit", strconv.Itoa(limit))
	if filter := BuildFilter(filters); filter != "" {
		q.Set("filter", filter)
	}
	reqURL := c.baseURL + "/search?" + q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RemoteRetriesTotal.WithLabelValues("duggan").Inc()
			if err := sleepCtx(ctx, c.backoff(attempt-1)); err != nil {
				return nil, domain.NewExternalServiceError(serviceName, err)
			}
		}

		docs, err := c.doSearch(ctx, reqURL)
		if err == nil {
			metrics.RemoteRequestsTotal.WithLabelValues("duggan", "success").Inc()
			return docs, nil
		}
		lastErr = err
		metrics.RemoteRequestsTotal.WithLabelValues("duggan", "error").Inc()
		c.logger.Warn("remote search attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, domain.NewExternalServiceError(serviceName, lastErr)
}

func (c *Client) doSearch(ctx context.Context, reqURL string) ([]domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// The provider reports application-level failures inside a 200 body.
	if !envelope.Success {
		return nil, fmt.Errorf("provider reported failure")
	}

	docs := make([]domain.Document, 0, len(envelope.Data.Hits))
	for i := range envelope.Data.Hits {
		docs = append(docs, envelope.Data.Hits[i].toDomain())
	}
	return docs, nil
}

// BuildFilter renders a filter set as the provider's boolean filter syntax.
// Values within one dimension are ORed, dimensions are ANDed. Empty sets
// produce an empty string.
func BuildFilter(filters *domain.FilterSet) string {
	if filters == nil || filters.IsEmpty() {
		return ""
	}

	var groups []string
	appendGroup := func(field string, values []string) {
		if len(values) == 0 {
			return
		}
		terms := make([]string, 0, len(values))
		for _, v := range values {
			terms = append(terms, fmt.Sprintf("%s=%q", field, v))
		}
		groups = append(groups, "("+strings.Join(terms, " OR ")+")")
	}

	appendGroup("doc_type", filters.DocTypes)
	appendGroup("people", filters.People)
	appendGroup("locations", filters.Locations)
	appendGroup("evidence_types", filters.EvidenceTypes)

	return strings.Join(groups, " AND ")
}

func backoff(retry int) time.Duration {
	d := backoffBase << (retry - 1)
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
