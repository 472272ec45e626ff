// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/book-analyzer/internal/openai"
)

type mockBackend struct {
	output string
	err    error
	calls  int

	lastKnowledge []string
	lastPrevious  []string
}

func (m *mockBackend) Summarize(_ context.Context, knowledge, previous []string) (string, error) {
	m.calls++
	m.lastKnowledge = knowledge
	m.lastPrevious = previous
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

func TestMain(m *testing.M) {
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// --- Generate ---

func TestGenerate_EmptyKnowledgeSkipsModel(t *testing.T) {
	backend := &mockBackend{output: "should not be used"}

	out, err := Generate(context.Background(), backend, nil, nil, 0, true, 3)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out == "" {
		t.Fatal("empty knowledge base must still produce a non-empty summary")
	}
	if !strings.Contains(out, "No knowledge points") {
		t.Errorf("summary should note missing content, got:\n%s", out)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times, want 0", backend.calls)
	}
}

func TestGenerate_PassesKnowledgeAndContext(t *testing.T) {
	backend := &mockBackend{output: "## Summary\n\ncontent"}

	out, err := Generate(context.Background(), backend, []string{"k1", "k2"}, []string{"prior analysis"}, 10, false, 3)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "## Summary\n\ncontent" {
		t.Errorf("unexpected output: %q", out)
	}
	if len(backend.lastKnowledge) != 2 {
		t.Errorf("backend received %d knowledge points, want 2", len(backend.lastKnowledge))
	}
	if len(backend.lastPrevious) != 1 {
		t.Errorf("backend received %d previous analyses, want 1", len(backend.lastPrevious))
	}
}

func TestGenerate_FailureBecomesSummarizationError(t *testing.T) {
	backend := &mockBackend{err: errors.New("model down")}

	_, err := Generate(context.Background(), backend, []string{"k"}, nil, 15, false, 1)
	if err == nil {
		t.Fatal("expected error")
	}

	var sumErr *SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("error is %T, want *SummarizationError", err)
	}
	if sumErr.Page != 15 || sumErr.Final {
		t.Errorf("SummarizationError = %+v, want page 15, not final", sumErr)
	}
	if backend.calls != 2 {
		t.Errorf("backend called %d times, want 2 (1 + 1 retry)", backend.calls)
	}
}

func TestGenerate_EmptyModelOutputIsAnError(t *testing.T) {
	backend := &mockBackend{output: ""}

	_, err := Generate(context.Background(), backend, []string{"k"}, nil, 0, true, 1)
	if err == nil {
		t.Fatal("expected error for empty model output")
	}
}

// --- Write ---

func TestWrite_FinalName(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, "dllm", "## Summary\n\nbody", 0, true)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if filepath.Base(path) != "dllm_final.md" {
		t.Errorf("final summary file = %s, want dllm_final.md", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "# Book Analysis: dllm") {
		t.Errorf("missing title header:\n%s", content)
	}
	if !strings.Contains(content, "body") {
		t.Errorf("missing summary body:\n%s", content)
	}
}

func TestWrite_IntervalNamesEmbedPage(t *testing.T) {
	dir := t.TempDir()

	p10, err := Write(dir, "dllm", "at ten", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	p20, err := Write(dir, "dllm", "at twenty", 20, false)
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(p10) != "dllm_interval_0010.md" {
		t.Errorf("interval file = %s, want dllm_interval_0010.md", filepath.Base(p10))
	}
	if p10 == p20 {
		t.Error("interval summaries at different pages must not collide")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d summary files, want 2", len(entries))
	}
}

func TestWrite_MissingDirFails(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "nope"), "dllm", "body", 0, true)
	if err == nil {
		t.Fatal("expected error for missing summaries directory")
	}
}

// --- OpenAIBackend ---

func TestOpenAIBackend_RendersPreviousTopics(t *testing.T) {
	var gotSystem, gotUser string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotSystem = req.Messages[0].Content
		gotUser = req.Messages[1].Content

		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "## ok"}},
			},
		})
		w.Write(body)
	}))
	defer ts.Close()

	backend := newTestBackend(ts.URL)
	long := strings.Repeat("x", 150)
	out, err := backend.Summarize(context.Background(), []string{"k1", "k2"}, []string{long})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if out != "## ok" {
		t.Errorf("output = %q, want ## ok", out)
	}
	if !strings.Contains(gotSystem, strings.Repeat("x", 100)+"...") {
		t.Error("previous topic not truncated into system prompt")
	}
	if !strings.Contains(gotUser, "k1\nk2") {
		t.Errorf("knowledge points missing from user message:\n%s", gotUser)
	}
}

func TestRenderInstructions_NoPrevious(t *testing.T) {
	out, err := renderInstructions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No previous analyses") {
		t.Errorf("instructions missing placeholder:\n%s", out)
	}
}

func newTestBackend(url string) *OpenAIBackend {
	return &OpenAIBackend{
		Client: &openai.Client{APIKey: "sk-test", BaseURL: url, MaxRetries: 1},
		Model:  "o1-mini",
	}
}
