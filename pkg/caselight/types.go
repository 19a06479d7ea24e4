package caselight

// FilterSet narrows a search to matching metadata values. All fields empty
// means "no filter".
type FilterSet struct {
	DocTypes      []string `json:"doc_types,omitempty"`
	People        []string `json:"people,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	EvidenceTypes []string `json:"evidence_types,omitempty"`
}

// SearchRequest describes one search invocation.
type SearchRequest struct {
	Query          string     `json:"query"`
	Filters        *FilterSet `json:"filters,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	SemanticWeight float64    `json:"semantic_weight,omitempty"`
}

// Document is a case-file document.
type Document struct {
	ID             string   `json:"id"`
	EftaID         string   `json:"efta_id"`
	Content        string   `json:"content"`
	ContentPreview string   `json:"content_preview,omitempty"`
	DocType        string   `json:"doc_type,omitempty"`
	People         []string `json:"people,omitempty"`
	Locations      []string `json:"locations,omitempty"`
	Aircraft       []string `json:"aircraft,omitempty"`
	EvidenceTypes  []string `json:"evidence_types,omitempty"`
	Pages          int      `json:"pages,omitempty"`
	Source         string   `json:"source,omitempty"`
	Dataset        string   `json:"dataset,omitempty"`
	FilePath       string   `json:"file_path,omitempty"`
	RelevanceScore float64  `json:"relevance_score,omitempty"`
	MatchType      string   `json:"match_type,omitempty"`
}

// Citation points an answer back at a source document.
type Citation struct {
	DocumentID     string  `json:"document_id"`
	EftaID         string  `json:"efta_id"`
	Snippet        string  `json:"snippet"`
	DocType        string  `json:"doc_type,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// AIAnswer is the generated answer with its citations.
type AIAnswer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// SearchResult is the outcome of one search.
type SearchResult struct {
	QueryID      string     `json:"query_id"`
	Query        string     `json:"query"`
	AIAnswer     AIAnswer   `json:"ai_answer"`
	Documents    []Document `json:"documents"`
	TotalResults int        `json:"total_results"`
	SearchTimeMs int64      `json:"search_time_ms"`
	Cached       bool       `json:"cached"`
}

// Event types delivered by SearchStream.
const (
	EventAnswerChunk = "answer_chunk"
	EventCitation    = "citation"
	EventDocument    = "document"
	EventComplete    = "complete"
	EventError       = "error"
)

// Event is one item of a streaming search.
type Event struct {
	Type           string    `json:"type"`
	Content        string    `json:"content,omitempty"`
	DocumentID     string    `json:"document_id,omitempty"`
	EftaID         string    `json:"efta_id,omitempty"`
	Snippet        string    `json:"snippet,omitempty"`
	RelevanceScore float64   `json:"relevance_score,omitempty"`
	Document       *Document `json:"document,omitempty"`
	TotalResults   *int      `json:"total_results,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// HealthReport is the service health summary.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
