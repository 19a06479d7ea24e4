package search

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/domain"
	"github.com/caselight/caselight/internal/metrics"
)

// Event types emitted over a search stream, in order: zero or more
// answer_chunk, then citation and document events, then exactly one terminal
// complete or error.
const (
	EventAnswerChunk = "answer_chunk"
	EventCitation    = "citation"
	EventDocument    = "document"
	EventComplete    = "complete"
	EventError       = "error"
)

// Event is one server-sent item of a streaming search.
type Event struct {
	Type string `json:"type"`

	// answer_chunk
	Content string `json:"content,omitempty"`

	// citation
	DocumentID     string  `json:"document_id,omitempty"`
	EftaID         string  `json:"efta_id,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`

	// document
	Document *domain.Document `json:"document,omitempty"`

	// complete
	TotalResults *int `json:"total_results,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// SearchStream runs the streaming pipeline and emits events on the returned
// channel. Streaming bypasses the result cache and the local collection and
// always queries the remote provider. The channel closes after the terminal
// event, or when ctx is cancelled.
func (s *Service) SearchStream(ctx context.Context, query *domain.Query) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		start := s.now()

		if err := s.runStream(ctx, query, events); err != nil {
			metrics.SearchesTotal.WithLabelValues("stream", "bypass").Inc()
			s.logger.Warn("stream search failed", zap.Error(err))
			send(ctx, events, Event{Type: EventError, Message: publicMessage(err)})
			return
		}

		metrics.SearchesTotal.WithLabelValues("stream", "bypass").Inc()
		metrics.SearchDuration.WithLabelValues("stream").Observe(s.now().Sub(start).Seconds())
	}()
	return events
}

func (s *Service) runStream(ctx context.Context, query *domain.Query, events chan<- Event) error {
	docs, err := s.searchRemote(ctx, query)
	if err != nil {
		return err
	}
	s.warmLocal(ctx, docs)

	if len(docs) > query.Limit() {
		docs = docs[:query.Limit()]
	}
	contextDocs := s.contextWindow(docs)

	if len(contextDocs) > 0 {
		if err := s.streamAnswer(ctx, query.Text(), contextDocs, events); err != nil {
			return err
		}
	}

	for i := range contextDocs {
		c := domain.NewCitation(&contextDocs[i])
		ok := send(ctx, events, Event{
			Type:           EventCitation,
			DocumentID:     c.DocumentID,
			EftaID:         c.EftaID,
			Snippet:        c.Snippet,
			RelevanceScore: c.RelevanceScore,
		})
		if !ok {
			return ctx.Err()
		}
	}

	for i := range docs {
		if !send(ctx, events, Event{Type: EventDocument, Document: &docs[i]}) {
			return ctx.Err()
		}
	}

	total := len(docs)
	if !send(ctx, events, Event{Type: EventComplete, TotalResults: &total}) {
		return ctx.Err()
	}
	return nil
}

func (s *Service) streamAnswer(ctx context.Context, queryText string, docs []domain.Document, events chan<- Event) error {
	stream, err := s.gen.GenerateStream(ctx, queryText, docs)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !send(ctx, events, Event{Type: EventAnswerChunk, Content: fragment}) {
			return ctx.Err()
		}
	}
}

// send delivers an event unless the consumer is gone.
func send(ctx context.Context, events chan<- Event, e Event) bool {
	select {
	case events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// publicMessage keeps provider internals out of client-facing error events.
func publicMessage(err error) string {
	var extErr *domain.ExternalServiceError
	if errors.As(err, &extErr) {
		return extErr.Service + " is unavailable"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "search timed out"
	}
	return "search failed"
}
