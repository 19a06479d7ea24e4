package document

import (
	"encoding/json"
	"fmt"

	"github.com/caselight/caselight/internal/domain"
)

// Hash field names. The full document lives as a JSON blob alongside the
// indexed tag and vector fields.
const (
	fieldDoc    = "doc"
	fieldEftaID = "efta_id"
	fieldVector = "vector"
)

func docToFields(doc *domain.Document) (map[string]string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}
	return map[string]string{
		fieldDoc:    string(payload),
		fieldEftaID: doc.EftaID,
	}, nil
}

func fieldsToDoc(fields map[string]string) (domain.Document, error) {
	raw, ok := fields[fieldDoc]
	if !ok {
		return domain.Document{}, fmt.Errorf("document field missing from hash")
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}
