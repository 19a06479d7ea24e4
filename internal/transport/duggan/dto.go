package duggan

import "github.com/caselight/caselight/internal/domain"

type searchResponse struct {
	Success bool       `json:"success"`
	Data    searchData `json:"data"`
}

type searchData struct {
	Hits []hit `json:"hits"`
}

// hit mirrors the provider's document shape. Ranking score and entity lists
// are optional on the wire.
type hit struct {
	ID             string   `json:"id"`
	EftaID         string   `json:"efta_id"`
	Content        string   `json:"content"`
	ContentPreview string   `json:"content_preview"`
	DocType        string   `json:"doc_type"`
	People         []string `json:"people"`
	Locations      []string `json:"locations"`
	Aircraft       []string `json:"aircraft"`
	EvidenceTypes  []string `json:"evidence_types"`
	Pages          int      `json:"pages"`
	Source         string   `json:"source"`
	Dataset        string   `json:"dataset"`
	FilePath       string   `json:"file_path"`
	Score          float64  `json:"score"`
}

func (h *hit) toDomain() domain.Document {
	preview := h.ContentPreview
	if preview == "" && len(h.Content) > 0 {
		if len(h.Content) > previewFallback {
			preview = h.Content[:previewFallback]
		} else {
			preview = h.Content
		}
	}

	return domain.Document{
		ID:             h.ID,
		EftaID:         h.EftaID,
		Content:        h.Content,
		ContentPreview: preview,
		DocType:        h.DocType,
		People:         orEmpty(h.People),
		Locations:      orEmpty(h.Locations),
		Aircraft:       orEmpty(h.Aircraft),
		EvidenceTypes:  orEmpty(h.EvidenceTypes),
		Pages:          h.Pages,
		Source:         h.Source,
		Dataset:        h.Dataset,
		FilePath:       h.FilePath,
		RelevanceScore: h.Score,
		MatchType:      "ranked",
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
