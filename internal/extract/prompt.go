// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/pdiddy/book-analyzer/internal/openai"
	"github.com/pdiddy/book-analyzer/pkg/types"
)

// extractionSystemPrompt instructs the model to study a page and filter out
// non-substantive front and back matter.
const extractionSystemPrompt = `Analyze this page as if you're studying from a book.

SKIP content if the page contains:
- Table of contents
- Chapter listings
- Index pages
- Blank pages
- Copyright information
- Publishing details
- References or bibliography
- Acknowledgments

DO extract knowledge if the page contains:
- Preface content that explains important concepts
- Actual educational content
- Key definitions and concepts
- Important arguments or theories
- Examples and case studies
- Significant findings or conclusions
- Methodologies or frameworks
- Critical analyses or interpretations

For valid content:
- Set has_content to true
- Extract detailed, learnable knowledge points
- Include important quotes or key statements
- Capture examples with their context
- Preserve technical terms and definitions
- Do not repeat points already present in the current knowledge base

For pages to skip:
- Set has_content to false
- Return an empty knowledge list`

// extractionUserTmpl renders the page text together with the knowledge
// accumulated so far, so the model can avoid redundant extraction.
var extractionUserTmpl = template.Must(template.New("extraction").Parse(`{{if .CurrentKnowledge -}}
Current knowledge base ({{len .CurrentKnowledge}} points):
{{range .CurrentKnowledge}}- {{.}}
{{end}}
{{end -}}
Page text: {{.PageText}}`))

// pageResultSchema is the strict JSON schema the extraction response must
// conform to. It mirrors types.PageResult.
var pageResultSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"has_content": {"type": "boolean"},
		"knowledge": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["has_content", "knowledge"],
	"additionalProperties": false
}`)

// OpenAIBackend extracts page knowledge through the OpenAI structured
// outputs API.
type OpenAIBackend struct {
	Client *openai.Client
	Model  string
}

// ExtractPage renders the extraction prompt for one page and parses the
// schema-constrained response into a PageResult.
func (b *OpenAIBackend) ExtractPage(ctx context.Context, pageText string, currentKnowledge []string) (types.PageResult, error) {
	user, err := renderUserPrompt(pageText, currentKnowledge)
	if err != nil {
		return types.PageResult{}, fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := b.Client.ChatStructured(ctx, b.Model, extractionSystemPrompt, user, "page_content", pageResultSchema)
	if err != nil {
		return types.PageResult{}, err
	}

	var result types.PageResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return types.PageResult{}, fmt.Errorf("parsing extraction response: %w", err)
	}
	return result, nil
}

func renderUserPrompt(pageText string, currentKnowledge []string) (string, error) {
	var buf bytes.Buffer
	err := extractionUserTmpl.Execute(&buf, struct {
		PageText         string
		CurrentKnowledge []string
	}{PageText: pageText, CurrentKnowledge: currentKnowledge})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
