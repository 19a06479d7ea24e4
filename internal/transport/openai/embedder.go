// Package openai wraps the OpenAI-compatible API for query embedding and
// answer generation.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/domain"
	"github.com/caselight/caselight/internal/metrics"
)

// Embedder produces query vectors through the embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// Config holds the provider settings shared by the embedder and generator.
type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Dimensions     int
	ChatModel      string
	Logger         *zap.Logger
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewEmbedder creates an embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{
		client:     newClient(cfg),
		model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbed returns one vector per input text, in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		return nil, parseAPIError("embedding", err)
	}
	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
		return nil, domain.NewExternalServiceError("embedding",
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "success").Inc()

	// The API does not guarantee response order, so place by index.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, domain.NewExternalServiceError("embedding",
				fmt.Errorf("embedding index %d out of range", item.Index))
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response and
// wraps it as an external-service failure for correct 503 mapping.
func parseAPIError(service string, err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return domain.NewExternalServiceError(service,
			fmt.Errorf("API error %d: %s", reqErr.HTTPStatusCode, detail))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewExternalServiceError(service,
			fmt.Errorf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message))
	}

	return domain.NewExternalServiceError(service, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
