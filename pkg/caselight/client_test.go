package caselight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchRoundTrip(t *testing.T) {
	var gotAuth string
	var gotReq SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(SearchResult{
			QueryID:      "q-1",
			Query:        gotReq.Query,
			AIAnswer:     AIAnswer{Text: "answer", Citations: []Citation{{DocumentID: "d1", EftaID: "EFTA-1"}}},
			Documents:    []Document{{ID: "d1", EftaID: "EFTA-1"}},
			TotalResults: 1,
		})
	}))
	defer srv.Close()

	client := New(srv.URL, WithAPIKey("secret"))
	result, err := client.Search(context.Background(), SearchRequest{
		Query:   "flight logs",
		Filters: &FilterSet{People: []string{"Jane Doe"}},
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", gotAuth)
	}
	if gotReq.Limit != 5 || gotReq.Filters == nil || gotReq.Filters.People[0] != "Jane Doe" {
		t.Errorf("server saw request %+v", gotReq)
	}
	if result.QueryID != "q-1" || result.AIAnswer.Text != "answer" || len(result.Documents) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestSearchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"code":"validation_failed","message":"query must not be empty"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Search(context.Background(), SearchRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Code != "validation_failed" {
		t.Errorf("unexpected APIError %+v", apiErr)
	}
}

func TestDocumentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"not_found","message":"document not found"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Document(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false for %v", err)
	}
}

func TestDocumentOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/documents/doc-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Document{ID: "doc-1", EftaID: "EFTA-7"})
	}))
	defer srv.Close()

	doc, err := New(srv.URL).Document(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc.EftaID != "EFTA-7" {
		t.Errorf("EftaID = %q", doc.EftaID)
	}
}

func TestSearchStreamDeliversEvents(t *testing.T) {
	total := 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "flight logs" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("people"); got != "Jane Doe,John Roe" {
			t.Errorf("people = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range []Event{
			{Type: EventAnswerChunk, Content: "The "},
			{Type: EventAnswerChunk, Content: "answer."},
			{Type: EventCitation, DocumentID: "d1", EftaID: "EFTA-1"},
			{Type: EventDocument, Document: &Document{ID: "d1"}},
			{Type: EventComplete, TotalResults: &total},
		} {
			payload, _ := json.Marshal(e)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
	}))
	defer srv.Close()

	events, err := New(srv.URL).SearchStream(context.Background(), SearchRequest{
		Query:   "flight logs",
		Filters: &FilterSet{People: []string{"Jane Doe", "John Roe"}},
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("SearchStream: %v", err)
	}

	var got []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				if len(got) != 5 {
					t.Fatalf("got %d events, want 5", len(got))
				}
				if got[0].Content != "The " || got[1].Content != "answer." {
					t.Errorf("answer chunks %q %q", got[0].Content, got[1].Content)
				}
				last := got[len(got)-1]
				if last.Type != EventComplete || last.TotalResults == nil || *last.TotalResults != 1 {
					t.Errorf("terminal event %+v", last)
				}
				return
			}
			got = append(got, e)
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestSearchStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"code":"external_service_error","message":"DugganUSA API is unavailable"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).SearchStream(context.Background(), SearchRequest{Query: "x"})
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("error = %v, want 503 *APIError", err)
	}
}

func TestHealthDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthReport{
			Status: "degraded",
			Checks: map[string]string{"database": "redis: connection refused"},
		})
	}))
	defer srv.Close()

	report, err := New(srv.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.Status != "degraded" || report.Checks["database"] == "" {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestAPIErrorFallbackOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	_, err := New(srv.URL).Search(context.Background(), SearchRequest{Query: "x"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if apiErr.Code != "unknown" || apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("fallback error %+v", apiErr)
	}
}
