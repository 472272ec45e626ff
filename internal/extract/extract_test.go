// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/book-analyzer/internal/openai"
	"github.com/pdiddy/book-analyzer/pkg/types"
)

// --- mock backends ---

type mockBackend struct {
	result types.PageResult
	err    error
	calls  int

	// lastKnowledge records the context passed on the most recent call.
	lastKnowledge []string
}

func (m *mockBackend) ExtractPage(_ context.Context, _ string, current []string) (types.PageResult, error) {
	m.calls++
	m.lastKnowledge = current
	if m.err != nil {
		return types.PageResult{}, m.err
	}
	return m.result, nil
}

// failNTimesBackend fails the first N calls, then succeeds.
type failNTimesBackend struct {
	failures  int
	callCount int
	result    types.PageResult
}

func (f *failNTimesBackend) ExtractPage(_ context.Context, _ string, _ []string) (types.PageResult, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return types.PageResult{}, fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return f.result, nil
}

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// --- Page ---

func TestPage_ReturnsKnowledge(t *testing.T) {
	backend := &mockBackend{result: types.PageResult{
		HasContent: true,
		Knowledge:  []string{"point one", "point two"},
	}}

	result, err := Page(context.Background(), backend, "page text", []string{"existing"}, 3, 3)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if !result.HasContent {
		t.Error("HasContent = false, want true")
	}
	if len(result.Knowledge) != 2 {
		t.Errorf("got %d knowledge points, want 2", len(result.Knowledge))
	}
	if len(backend.lastKnowledge) != 1 || backend.lastKnowledge[0] != "existing" {
		t.Errorf("backend did not receive current knowledge context: %v", backend.lastKnowledge)
	}
}

func TestPage_NoContentYieldsNoPoints(t *testing.T) {
	// A model that reports no content but still returns points: the points
	// must not leak into the knowledge base.
	backend := &mockBackend{result: types.PageResult{
		HasContent: false,
		Knowledge:  []string{"stray point"},
	}}

	result, err := Page(context.Background(), backend, "blank page", nil, 1, 3)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if result.HasContent {
		t.Error("HasContent = true, want false")
	}
	if len(result.Knowledge) != 0 {
		t.Errorf("got %d knowledge points, want 0", len(result.Knowledge))
	}
}

func TestPage_DropsBlankPoints(t *testing.T) {
	backend := &mockBackend{result: types.PageResult{
		HasContent: true,
		Knowledge:  []string{"  kept  ", "", "   \t"},
	}}

	result, err := Page(context.Background(), backend, "text", nil, 1, 3)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if len(result.Knowledge) != 1 || result.Knowledge[0] != "kept" {
		t.Errorf("Knowledge = %v, want [kept]", result.Knowledge)
	}
}

func TestPage_FailureBecomesExtractionError(t *testing.T) {
	backend := &mockBackend{err: errors.New("model unavailable")}

	_, err := Page(context.Background(), backend, "text", nil, 5, 2)
	if err == nil {
		t.Fatal("expected error")
	}

	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("error is %T, want *ExtractionError", err)
	}
	if extErr.Page != 5 {
		t.Errorf("ExtractionError.Page = %d, want 5", extErr.Page)
	}
}

func TestPage_RetriesTransientFailures(t *testing.T) {
	backend := &failNTimesBackend{
		failures: 2,
		result:   types.PageResult{HasContent: true, Knowledge: []string{"eventually"}},
	}

	result, err := Page(context.Background(), backend, "text", nil, 1, 3)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if backend.callCount != 3 {
		t.Errorf("backend called %d times, want 3", backend.callCount)
	}
	if len(result.Knowledge) != 1 {
		t.Errorf("got %d knowledge points, want 1", len(result.Knowledge))
	}
}

func TestPage_ExhaustedRetries(t *testing.T) {
	backend := &failNTimesBackend{failures: 10}

	_, err := Page(context.Background(), backend, "text", nil, 1, 2)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if backend.callCount != 3 {
		t.Errorf("backend called %d times, want 3 (1 + 2 retries)", backend.callCount)
	}
}

func TestPage_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &failNTimesBackend{failures: 10}
	_, err := Page(ctx, backend, "text", nil, 1, 3)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// --- OpenAIBackend ---

func TestOpenAIBackend_ParsesStructuredResponse(t *testing.T) {
	content := `{"has_content": true, "knowledge": ["a fact", "another fact"]}`
	ts := newCompletionServer(t, content)
	defer ts.Close()

	backend := &OpenAIBackend{
		Client: &openai.Client{APIKey: "sk-test", BaseURL: ts.URL, MaxRetries: 1},
		Model:  "gpt-4o-mini",
	}

	result, err := backend.ExtractPage(context.Background(), "some page", []string{"prior"})
	if err != nil {
		t.Fatalf("ExtractPage returned error: %v", err)
	}
	if !result.HasContent || len(result.Knowledge) != 2 {
		t.Errorf("result = %+v, want has_content with 2 points", result)
	}
}

func TestOpenAIBackend_MalformedResponse(t *testing.T) {
	ts := newCompletionServer(t, "not json at all")
	defer ts.Close()

	backend := &OpenAIBackend{
		Client: &openai.Client{APIKey: "sk-test", BaseURL: ts.URL, MaxRetries: 1},
		Model:  "gpt-4o-mini",
	}

	_, err := backend.ExtractPage(context.Background(), "some page", nil)
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
}

func TestRenderUserPrompt(t *testing.T) {
	tests := []struct {
		name      string
		knowledge []string
		contains  []string
		excludes  []string
	}{
		{
			name:      "with context",
			knowledge: []string{"first point"},
			contains:  []string{"Current knowledge base (1 points):", "- first point", "Page text: the page"},
		},
		{
			name:     "without context",
			contains: []string{"Page text: the page"},
			excludes: []string{"Current knowledge base"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := renderUserPrompt("the page", tt.knowledge)
			if err != nil {
				t.Fatalf("renderUserPrompt: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("prompt missing %q:\n%s", want, out)
				}
			}
			for _, not := range tt.excludes {
				if strings.Contains(out, not) {
					t.Errorf("prompt unexpectedly contains %q:\n%s", not, out)
				}
			}
		})
	}
}

// newCompletionServer returns an httptest server that answers every chat
// completion with the given message content.
func newCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}, "finish_reason": "stop"},
			},
		})
		w.Write(body)
	}))
}
