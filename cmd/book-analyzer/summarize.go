package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/book-analyzer/internal/knowledge"
	"github.com/pdiddy/book-analyzer/internal/openai"
	"github.com/pdiddy/book-analyzer/internal/summarize"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <book>",
	Short: "Regenerate the final summary from a saved knowledge base",
	Long: `Summarize rebuilds the final markdown summary for a book whose knowledge
base already exists under --base-dir, without reprocessing the PDF. Useful
after a run whose final summary failed, or to try a different model.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().String("base-dir", defaultBaseDir, "working directory for knowledge bases and summaries")
	summarizeCmd.Flags().String("analysis-model", defaultSummarizationModel, "model for the summary")
	summarizeCmd.Flags().Int("max-retries", defaultMaxRetries, "retry attempts for failed model calls")
	summarizeCmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout for model calls")
	summarizeCmd.Flags().String("api-key", "", "OpenAI API key (default: .secrets/openai-api-key or OPENAI_API_KEY)")
	summarizeCmd.Flags().String("base-url", "", "override the OpenAI API endpoint")

	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	book := args[0]

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
	analysisModel, _ := cmd.Flags().GetString("analysis-model")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	path := knowledge.FilePath(baseDir, book)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no knowledge base for %q at %s: run analyze first", book, path)
	}

	store := knowledge.NewStore(path, io.Discard)
	points, err := store.Load()
	if err != nil {
		return err
	}

	backend := &summarize.OpenAIBackend{
		Client: &openai.Client{
			APIKey:     apiKey,
			BaseURL:    baseURL,
			HTTPClient: &http.Client{Timeout: timeout},
			MaxRetries: maxRetries,
		},
		Model: analysisModel,
	}

	text, err := summarize.Generate(cmd.Context(), backend, points, nil, 0, true, maxRetries)
	if err != nil {
		return err
	}

	summariesDir := filepath.Join(baseDir, "summaries")
	if err := os.MkdirAll(summariesDir, 0o755); err != nil {
		return err
	}
	out, err := summarize.Write(summariesDir, book, text, 0, true)
	if err != nil {
		return err
	}
	fmt.Printf("final summary written to %s (%d points)\n", out, len(points))
	return nil
}
