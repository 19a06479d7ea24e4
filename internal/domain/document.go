// Package domain holds the core entities of the search engine: queries,
// documents, answers, and cached results. Entities are plain serializable
// records; input types (Query) are built through validating constructors.
package domain

// Document is a case-file document as returned by either the local store or
// the remote provider. ID is the dedup key across sources.
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

// Snippet returns the preview text, falling back to the first max characters
// of content.
func (d *Document) Snippet(max int) string {
	if d.ContentPreview != "" {
		return d.ContentPreview
	}
	if len(d.Content) > max {
		return d.Content[:max]
	}
	return d.Content
}

// Citation points an answer back at a source document. Derived from the
// answer-generation context window, never persisted on its own.
type Citation struct {
	DocumentID     string  `json:"document_id"`
	EftaID         string  `json:"efta_id"`
	Snippet        string  `json:"snippet"`
	DocType        string  `json:"doc_type,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// AIAnswer is the generated answer with its ordered citations.
type AIAnswer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// CitationSnippetLen is the content fallback length for citation snippets.
const CitationSnippetLen = 200

// NewCitation derives a citation from a context document.
func NewCitation(d *Document) Citation {
	return Citation{
		DocumentID:     d.ID,
		EftaID:         d.EftaID,
		Snippet:        d.Snippet(CitationSnippetLen),
		DocType:        d.DocType,
		RelevanceScore: d.RelevanceScore,
	}
}
