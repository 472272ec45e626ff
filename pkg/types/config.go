// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// AIConfig holds shared settings for stages that call the OpenAI API.
type AIConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint. Empty uses the public endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout is the HTTP request timeout for API calls.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// AnalysisConfig holds settings for the analyze pipeline.
type AnalysisConfig struct {
	// Book is the document identifier, the PDF filename without extension.
	// Output files (knowledge base, summaries, progress) are named after it.
	Book string `json:"book" yaml:"book"`

	// BaseDir is the working directory containing knowledge_bases/,
	// summaries/, and progress/.
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// TestPages bounds the run to the first N pages. Zero processes the
	// whole book.
	TestPages int `json:"test_pages" yaml:"test_pages"`

	// Interval generates a checkpoint summary every N pages. Zero disables
	// interval summaries.
	Interval int `json:"interval" yaml:"interval"`

	// ContextWindow is the number of previous interval analyses passed to
	// the summarizer as context (default 5).
	ContextWindow int `json:"context_window" yaml:"context_window"`

	// Resume continues from the page recorded in the progress file instead
	// of re-processing the configured range from the start.
	Resume bool `json:"resume" yaml:"resume"`

	// Extraction configures the per-page extraction model.
	Extraction AIConfig `json:"extraction" yaml:"extraction"`

	// Summarization configures the summary model.
	Summarization AIConfig `json:"summarization" yaml:"summarization"`
}

// KnowledgeBaseConfig holds settings for the knowledge index stage.
type KnowledgeBaseConfig struct {
	// BaseDir is the working directory (contains knowledge_bases/, index/).
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}
