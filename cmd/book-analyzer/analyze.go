package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/book-analyzer/internal/analyze"
	"github.com/pdiddy/book-analyzer/internal/extract"
	"github.com/pdiddy/book-analyzer/internal/openai"
	"github.com/pdiddy/book-analyzer/internal/pdfsource"
	"github.com/pdiddy/book-analyzer/internal/summarize"
	"github.com/pdiddy/book-analyzer/pkg/types"
)

const (
	defaultExtractionModel    = "gpt-4o-mini"
	defaultSummarizationModel = "o1-mini"
	defaultBaseDir            = "book_analysis"
	defaultInterval           = 20
	defaultMaxRetries         = 3
	defaultTimeout            = 2 * time.Minute
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <book.pdf>",
	Short: "Process a PDF book into a knowledge base and summaries",
	Long: `Analyze processes the book one page at a time. Each page's text goes to
the extraction model along with the knowledge collected so far; new points
are appended and the knowledge base is saved before moving on. Every
--interval pages a checkpoint summary is written, and a final summary
covers the complete book.

Output lands under --base-dir: knowledge_bases/ holds the accumulated
points, summaries/ the markdown summaries, progress/ the per-page
checkpoint a --resume run continues from.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("base-dir", defaultBaseDir, "working directory for knowledge bases, summaries, and progress")
	analyzeCmd.Flags().Int("test-pages", 0, "process only the first N pages (0 = whole book)")
	analyzeCmd.Flags().Int("interval", defaultInterval, "pages between checkpoint summaries (0 = none)")
	analyzeCmd.Flags().Int("context-window", 0, "previous analyses passed to the summarizer (default 5)")
	analyzeCmd.Flags().String("model", defaultExtractionModel, "model for per-page extraction")
	analyzeCmd.Flags().String("analysis-model", defaultSummarizationModel, "model for summaries")
	analyzeCmd.Flags().Int("max-retries", defaultMaxRetries, "retry attempts for failed model calls")
	analyzeCmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout for model calls")
	analyzeCmd.Flags().String("api-key", "", "OpenAI API key (default: .secrets/openai-api-key or OPENAI_API_KEY)")
	analyzeCmd.Flags().String("base-url", "", "override the OpenAI API endpoint")
	analyzeCmd.Flags().Bool("resume", false, "continue from the progress checkpoint instead of the first page")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]

	apiKey, _ := cmd.Flags().GetString("api-key")
	apiKey = secretDefault("openai-api-key", apiKey)
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("no API key: use --api-key, .secrets/openai-api-key, or OPENAI_API_KEY")
	}

	baseURL, _ := cmd.Flags().GetString("base-url")
	baseURL = secretDefault("openai-base-url", baseURL)

	baseDir, _ := cmd.Flags().GetString("base-dir")
	testPages, _ := cmd.Flags().GetInt("test-pages")
	interval, _ := cmd.Flags().GetInt("interval")
	contextWindow, _ := cmd.Flags().GetInt("context-window")
	model, _ := cmd.Flags().GetString("model")
	analysisModel, _ := cmd.Flags().GetString("analysis-model")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	resume, _ := cmd.Flags().GetBool("resume")

	source, err := pdfsource.Open(pdfPath)
	if err != nil {
		return err
	}
	defer source.Close()

	book := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))

	client := &openai.Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		MaxRetries: maxRetries,
	}

	cfg := types.AnalysisConfig{
		Book:          book,
		BaseDir:       baseDir,
		TestPages:     testPages,
		Interval:      interval,
		ContextWindow: contextWindow,
		Resume:        resume,
		Extraction: types.AIConfig{
			Model:      model,
			MaxRetries: maxRetries,
			Timeout:    timeout,
		},
		Summarization: types.AIConfig{
			Model:      analysisModel,
			MaxRetries: maxRetries,
			Timeout:    timeout,
		},
	}

	summary, err := analyze.Run(cmd.Context(), source,
		&extract.OpenAIBackend{Client: client, Model: model},
		&summarize.OpenAIBackend{Client: client, Model: analysisModel},
		cfg, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		fmt.Fprintf(os.Stderr, "%d page(s) skipped; re-run with --resume after fixing the cause\n", summary.Failed)
	}
	return nil
}
