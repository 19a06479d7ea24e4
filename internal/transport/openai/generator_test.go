package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/caselight/caselight/internal/domain"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-chat",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestGenerator_Generate(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("The flight logs show three trips."))
	}))
	defer server.Close()

	docs := []domain.Document{
		{ID: "d1", EftaID: "EFTA-1", Content: "log entry", DocType: "flight_log", People: []string{"Jane Doe"}},
	}

	answer, err := NewGenerator(testConfig(server.URL)).Generate(context.Background(), "how many trips?", docs)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "The flight logs show three trips." {
		t.Errorf("answer = %q", answer)
	}

	if len(gotBody.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", gotBody.Messages[0].Role)
	}
	user := gotBody.Messages[1].Content
	for _, want := range []string{"EFTA-1", "flight_log", "Jane Doe", "log entry", "Question: how many trips?"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestGenerator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[]}`)
	}))
	defer server.Close()

	_, err := NewGenerator(testConfig(server.URL)).Generate(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestGenerator_GenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"The ", "", "answer."}
		for i, c := range chunks {
			payload := map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion.chunk",
				"choices": []map[string]any{
					{"index": i, "delta": map[string]any{"content": c}},
				},
			}
			raw, _ := json.Marshal(payload)
			fmt.Fprintf(w, "data: %s\n\n", raw)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	stream, err := NewGenerator(testConfig(server.URL)).GenerateStream(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	defer stream.Close()

	var got []string
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		got = append(got, fragment)
	}

	// The empty keep-alive delta is skipped.
	if len(got) != 2 || got[0] != "The " || got[1] != "answer." {
		t.Errorf("fragments = %v, want [The , answer.]", got)
	}
}

func TestBuildPrompt_PrefersPreview(t *testing.T) {
	docs := []domain.Document{
		{ID: "d1", EftaID: "EFTA-1", Content: "full content", ContentPreview: "short preview"},
	}
	prompt := buildPrompt("q", docs)
	if !strings.Contains(prompt, "short preview") {
		t.Errorf("prompt should use preview:\n%s", prompt)
	}
	if strings.Contains(prompt, "full content") {
		t.Errorf("prompt should not include full content when preview exists:\n%s", prompt)
	}
}
