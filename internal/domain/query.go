package domain

import (
	"fmt"
	"unicode/utf8"
)

// Search parameter limits.
const (
	MinQueryLength = 2
	MaxQueryLength = 1000
	DefaultLimit   = 20
	MaxLimit       = 100
)

// QueryLimits bounds the requested result count per deployment. Zero values
// fall back to the package defaults.
type QueryLimits struct {
	Default int
	Max     int
}

func (l QueryLimits) defaulted() (def, max int) {
	def, max = l.Default, l.Max
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	return def, max
}

// FilterSet holds the optional equality filters a query may carry. All fields
// empty means "no filter".
type FilterSet struct {
	DocTypes      []string `json:"doc_types,omitempty"`
	People        []string `json:"people,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	EvidenceTypes []string `json:"evidence_types,omitempty"`
}

// IsEmpty reports whether no filter field is set.
func (f *FilterSet) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.DocTypes) == 0 && len(f.People) == 0 &&
		len(f.Locations) == 0 && len(f.EvidenceTypes) == 0
}

// Query is a validated, immutable search query.
type Query struct {
	text           string
	filters        *FilterSet
	limit          int
	semanticWeight float64
}

// NewQuery validates and normalizes query parameters. A non-positive limit
// takes the configured default; larger limits are clamped to the configured
// max. Length checks count runes, not bytes. semanticWeight defaults to 0.7.
func NewQuery(text string, filters *FilterSet, limit int, semanticWeight float64, limits QueryLimits) (Query, error) {
	if utf8.RuneCountInString(text) < MinQueryLength {
		return Query{}, fmt.Errorf("%w: query must be at least %d characters", ErrValidation, MinQueryLength)
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", ErrValidation, MaxQueryLength)
	}
	defLimit, maxLimit := limits.defaulted()
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if semanticWeight == 0 {
		semanticWeight = 0.7
	}
	if semanticWeight < 0 || semanticWeight > 1 {
		return Query{}, fmt.Errorf("%w: semantic_weight must be between 0 and 1", ErrValidation)
	}
	if filters != nil && filters.IsEmpty() {
		filters = nil
	}

	return Query{
		text:           text,
		filters:        filters,
		limit:          limit,
		semanticWeight: semanticWeight,
	}, nil
}

// Text returns the raw query text.
func (q *Query) Text() string { return q.text }

// Filters returns the filter set, nil when unfiltered.
func (q *Query) Filters() *FilterSet { return q.filters }

// Limit returns the maximum number of documents to return.
func (q *Query) Limit() int { return q.limit }

// SemanticWeight returns the semantic ranking weight in [0,1].
func (q *Query) SemanticWeight() float64 { return q.semanticWeight }
