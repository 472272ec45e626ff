// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/book-analyzer/internal/knowledge"
	"github.com/pdiddy/book-analyzer/pkg/types"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Search and export the accumulated knowledge bases",
	Long: `Knowledge maintains a SQLite full-text index over every book's knowledge
base under --base-dir. Use subcommands to build the index, search across
books, or export.`,
}

// --- index subcommand ---

var knowledgeIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Ingest knowledge base files into the search index",
	Long: `Index reads every knowledge base file under knowledge_bases/, ingests
its points into a SQLite database with FTS5 indexing, and skips books
that have not changed since the last run.`,
	RunE: runKnowledgeIndex,
}

func runKnowledgeIndex(cmd *cobra.Command, args []string) error {
	ix, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer ix.Close()

	summary, err := ix.Ingest(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d book(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- search subcommand ---

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the knowledge index with full-text search",
	Long: `Search runs an FTS5 full-text query across every indexed book, or lists
one book's points in extraction order with --book. Results carry the book
name and the point's position in it.`,
	RunE: runKnowledgeSearch,
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	ix, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer ix.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query or --book")
	}

	results, err := ix.Retrieve(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(results, jsonOutput)
}

func formatSearchOutput(results []knowledge.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-5s  %s\n", "Rank", "Book", "Seq", "Content")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for i, r := range results {
		book := r.Book
		if len(book) > 20 {
			book = book[:17] + "..."
		}
		content := r.Content
		if len(content) > 66 {
			content = content[:63] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-5d  %s\n", i+1, book, r.Seq, content)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the knowledge index to YAML or JSON",
	Long: `Export writes the indexed knowledge points (or a filtered subset) to
index/export.yaml or export.json under the base directory. Supports the
same filter flags as search for partial exports.`,
	RunE: runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	ix, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer ix.Close()

	opts := queryOptsFromFlags(cmd, args)

	switch format {
	case "yaml", "":
		if err := ix.ExportYAML(cmd.Context(), opts); err != nil {
			return err
		}
		fmt.Println("Exported to index/export.yaml")
	case "json":
		if err := ix.ExportJSON(cmd.Context(), opts); err != nil {
			return err
		}
		fmt.Println("Exported to index/export.json")
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	return nil
}

// --- shared helpers ---

func openIndex(cmd *cobra.Command) (*knowledge.Index, error) {
	baseDir, _ := cmd.Flags().GetString("base-dir")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return knowledge.OpenIndex(types.KnowledgeBaseConfig{
		BaseDir:    baseDir,
		MaxResults: maxResults,
	})
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) knowledge.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	book, _ := cmd.Flags().GetString("book")
	limit, _ := cmd.Flags().GetInt("limit")

	return knowledge.QueryOptions{
		Query:      queryText,
		Book:       book,
		MaxResults: limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	knowledgeCmd.PersistentFlags().String("base-dir", defaultBaseDir, "working directory (contains knowledge_bases/, index/)")
	knowledgeCmd.PersistentFlags().Int("max-results", 20, "maximum number of query results")

	// Search flags.
	knowledgeSearchCmd.Flags().String("query", "", "full-text search query")
	knowledgeSearchCmd.Flags().String("book", "", "filter to one book")
	knowledgeSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	knowledgeSearchCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	knowledgeExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	knowledgeExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	knowledgeExportCmd.Flags().String("book", "", "filter to one book for partial export")
	knowledgeExportCmd.Flags().Int("limit", 0, "maximum points to export (0 = all)")

	// Wire subcommands.
	knowledgeCmd.AddCommand(knowledgeIndexCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)

	rootCmd.AddCommand(knowledgeCmd)
}
