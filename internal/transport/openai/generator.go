package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/domain"
	"github.com/caselight/caselight/internal/metrics"
)

const systemPrompt = "You are a research assistant answering questions about " +
	"investigative case files. Answer strictly from the provided documents. " +
	"Cite documents by their EFTA number where relevant. If the documents do " +
	"not contain the answer, say so."

// contextContentLen caps the per-document content included in the prompt when
// no preview is available.
const contextContentLen = 500

// Generator produces grounded answers through the chat completions endpoint.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewGenerator creates an answer generator.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{
		client: newClient(cfg),
		model:  cfg.ChatModel,
		logger: cfg.Logger,
	}
}

// Generate returns a complete answer grounded in the context documents.
func (g *Generator) Generate(ctx context.Context, queryText string, docs []domain.Document) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(queryText, docs))
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "sync", "error").Inc()
		return "", parseAPIError("generation", err)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "sync", "error").Inc()
		return "", domain.NewExternalServiceError("generation", fmt.Errorf("empty completion response"))
	}
	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "sync", "success").Inc()
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream opens a streaming completion. The caller must drain or close
// the returned stream.
func (g *Generator) GenerateStream(ctx context.Context, queryText string, docs []domain.Document) (*AnswerStream, error) {
	req := g.request(queryText, docs)
	req.Stream = true

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "error").Inc()
		return nil, parseAPIError("generation", err)
	}
	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "success").Inc()
	return &AnswerStream{stream: stream}, nil
}

func (g *Generator) request(queryText string, docs []domain.Document) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(queryText, docs)},
		},
	}
}

// buildPrompt lays out one numbered block per context document with a
// metadata header, then the question.
func buildPrompt(queryText string, docs []domain.Document) string {
	var b strings.Builder
	b.WriteString("Documents:\n\n")
	for i := range docs {
		d := &docs[i]
		fmt.Fprintf(&b, "[%d] %s", i+1, d.EftaID)
		if d.DocType != "" {
			fmt.Fprintf(&b, " (%s)", d.DocType)
		}
		if len(d.People) > 0 {
			fmt.Fprintf(&b, " people: %s", strings.Join(d.People, ", "))
		}
		b.WriteString("\n")
		b.WriteString(d.Snippet(contextContentLen))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s", queryText)
	return b.String()
}

// AnswerStream yields answer fragments as the model produces them.
type AnswerStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next fragment, io.EOF when the model is done, or an
// external-service error on transport failure. Empty keep-alive deltas are
// skipped.
func (s *AnswerStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", parseAPIError("generation", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

// Close releases the underlying HTTP response.
func (s *AnswerStream) Close() error {
	return s.stream.Close()
}
