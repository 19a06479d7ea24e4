// Package chi exposes the HTTP API: search, streaming search, document
// lookup, health, and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/domain"
	healthuc "github.com/caselight/caselight/internal/usecase/health"
	searchuc "github.com/caselight/caselight/internal/usecase/search"
)

// Error codes in the JSON error envelope.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "not_found"
	codeExternalService  = "external_service_error"
	codeInternalError    = "internal_error"
)

// Searcher runs the search pipeline in single-shot or streaming mode.
type Searcher interface {
	Search(ctx context.Context, query *domain.Query) (*domain.SearchResult, error)
	SearchStream(ctx context.Context, query *domain.Query) <-chan searchuc.Event
}

// DocumentGetter fetches one document by ID.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (domain.Document, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// statusMapping pairs a domain sentinel with its HTTP representation.
type statusMapping struct {
	sentinel error
	status   int
	code     string
}

// Server holds the HTTP handlers.
type Server struct {
	search    Searcher
	documents DocumentGetter
	health    HealthChecker
	limits    domain.QueryLimits
	logger    *zap.Logger
	mappings  []statusMapping
}

// NewServer creates an HTTP API server. limits bounds the per-request
// document count for both search modes.
func NewServer(search Searcher, documents DocumentGetter, health HealthChecker,
	limits domain.QueryLimits, logger *zap.Logger) *Server {
	return &Server{
		search:    search,
		documents: documents,
		health:    health,
		limits:    limits,
		logger:    logger,
		mappings: []statusMapping{
			{domain.ErrValidation, http.StatusUnprocessableEntity, codeValidationFailed},
			{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
			{domain.ErrExternalService, http.StatusServiceUnavailable, codeExternalService},
		},
	}
}

// Mount registers all routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/search/stream", s.handleSearchStream)
		r.Get("/documents/{id}", s.handleGetDocument)
	})
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// searchRequest is the POST /search body.
type searchRequest struct {
	Query          string            `json:"query"`
	Filters        *domain.FilterSet `json:"filters,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	SemanticWeight float64           `json:"semantic_weight,omitempty"`
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	query, err := domain.NewQuery(req.Query, req.Filters, req.Limit, req.SemanticWeight, s.limits)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	result, err := s.search.Search(r.Context(), &query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSearchStream handles GET /api/v1/search/stream as server-sent events.
// Query parameters: q (required), limit, doc_types, people, locations,
// evidence_types (comma-separated).
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	limit := 0
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	filters := &domain.FilterSet{
		DocTypes:      splitParam(params.Get("doc_types")),
		People:        splitParam(params.Get("people")),
		Locations:     splitParam(params.Get("locations")),
		EvidenceTypes: splitParam(params.Get("evidence_types")),
	}

	query, err := domain.NewQuery(params.Get("q"), filters, limit, 0, s.limits)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range s.search.SearchStream(r.Context(), &query) {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("marshal stream event", zap.Error(err))
			return
		}
		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleGetDocument handles GET /api/v1/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "document id is required")
		return
	}

	doc, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, m := range s.mappings {
		if errors.Is(err, m.sentinel) {
			s.logger.Warn("domain error", zap.Error(err))
			writeError(w, m.status, m.code, safeMessage(err, m.sentinel))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeMessage exposes validation detail to the client but hides the inner
// cause of everything else.
func safeMessage(err error, sentinel error) string {
	if errors.Is(sentinel, domain.ErrValidation) {
		return err.Error()
	}
	var extErr *domain.ExternalServiceError
	if errors.As(err, &extErr) {
		return extErr.Service + " is unavailable"
	}
	return sentinel.Error()
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
