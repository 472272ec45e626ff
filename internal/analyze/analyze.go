// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze drives the page-by-page book analysis pipeline: extract
// knowledge points from each page, persist the knowledge base after every
// page, and generate interval and final summaries.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/book-analyzer/internal/extract"
	"github.com/pdiddy/book-analyzer/internal/knowledge"
	"github.com/pdiddy/book-analyzer/internal/summarize"
	"github.com/pdiddy/book-analyzer/pkg/types"
)

const (
	summariesDirName = "summaries"

	defaultContextWindow = 5
)

// PageSource supplies page text for a document. Pages are 1-indexed.
type PageSource interface {
	NumPages() int
	PageText(page int) (string, error)
}

// RunSummary reports what a pipeline run did.
type RunSummary struct {
	// Extracted counts pages that contributed knowledge points.
	Extracted int

	// NoContent counts pages the model judged to have nothing worth
	// keeping (front matter, blank pages).
	NoContent int

	// Failed counts pages skipped because reading or extraction failed.
	Failed int

	// Intervals counts interval summaries written.
	Intervals int

	// FinalWritten reports whether the final summary was generated.
	FinalWritten bool

	// Points is the knowledge base size at the end of the run.
	Points int
}

// Pages returns the number of pages the run attempted.
func (s RunSummary) Pages() int {
	return s.Extracted + s.NoContent + s.Failed
}

// HasFailures reports whether any page was skipped.
func (s RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// Run processes the source page by page. The knowledge base is saved after
// every page, so a crash loses at most the page in flight. Extraction and
// summarization failures are reported on w and skipped; persistence
// failures abort the run.
func Run(ctx context.Context, source PageSource, extractor extract.AIBackend, summarizer summarize.AIBackend, cfg types.AnalysisConfig, w io.Writer) (RunSummary, error) {
	var summary RunSummary

	if err := makeDirs(cfg.BaseDir); err != nil {
		return summary, err
	}

	store := knowledge.NewStore(knowledge.FilePath(cfg.BaseDir, cfg.Book), w)
	points, err := store.Load()
	if err != nil {
		return summary, err
	}

	end := source.NumPages()
	if cfg.TestPages > 0 && cfg.TestPages < end {
		end = cfg.TestPages
	}
	if end < 1 {
		return summary, fmt.Errorf("document %s has no pages", cfg.Book)
	}

	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}

	start := 1
	var analyses []string
	if cfg.Resume {
		rec, err := loadProgress(cfg.BaseDir, cfg.Book)
		if err != nil {
			fmt.Fprintf(w, "warning: cannot read progress file, starting from page 1: %v\n", err)
		} else if rec != nil {
			start = rec.LastPage + 1
			analyses = rec.Analyses
			fmt.Fprintf(w, "resuming %s from page %d (%d points so far)\n", cfg.Book, start, len(points))
		}
	}

	fmt.Fprintf(w, "processing %s: pages %d-%d\n", cfg.Book, start, end)

	for page := start; page <= end; page++ {
		text, err := source.PageText(page)
		if err != nil {
			fmt.Fprintf(w, "warning: skipping page %d: %v\n", page, err)
			summary.Failed++
			continue
		}

		result, err := extract.Page(ctx, extractor, text, points, page, cfg.Extraction.MaxRetries)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			fmt.Fprintf(w, "warning: skipping page %d: %v\n", page, err)
			summary.Failed++
			continue
		}

		if result.HasContent && len(result.Knowledge) > 0 {
			points = append(points, result.Knowledge...)
			summary.Extracted++
			fmt.Fprintf(w, "page %d: %d new points (%d total)\n", page, len(result.Knowledge), len(points))
		} else {
			summary.NoContent++
			fmt.Fprintf(w, "page %d: no content\n", page)
		}

		if err := store.Save(points); err != nil {
			return summary, err
		}

		if cfg.Interval > 0 && page%cfg.Interval == 0 && page != end {
			text, err := summarize.Generate(ctx, summarizer, points, lastN(analyses, contextWindow), page, false, cfg.Summarization.MaxRetries)
			if err != nil {
				fmt.Fprintf(w, "warning: %v\n", err)
			} else {
				path, err := summarize.Write(filepath.Join(cfg.BaseDir, summariesDirName), cfg.Book, text, page, false)
				if err != nil {
					return summary, err
				}
				analyses = append(analyses, text)
				summary.Intervals++
				fmt.Fprintf(w, "interval summary written to %s\n", path)
			}
		}

		if err := saveProgress(cfg.BaseDir, progressRecord{
			Book:     cfg.Book,
			LastPage: page,
			Points:   len(points),
			Analyses: lastN(analyses, contextWindow),
		}); err != nil {
			fmt.Fprintf(w, "warning: cannot save progress: %v\n", err)
		}
	}

	summary.Points = len(points)

	final, err := summarize.Generate(ctx, summarizer, points, lastN(analyses, contextWindow), end, true, cfg.Summarization.MaxRetries)
	if err != nil {
		fmt.Fprintf(w, "warning: %v\n", err)
		printSummary(w, summary)
		return summary, nil
	}
	path, err := summarize.Write(filepath.Join(cfg.BaseDir, summariesDirName), cfg.Book, final, end, true)
	if err != nil {
		return summary, err
	}
	summary.FinalWritten = true
	fmt.Fprintf(w, "final summary written to %s\n", path)

	if err := clearProgress(cfg.BaseDir, cfg.Book); err != nil {
		fmt.Fprintf(w, "warning: cannot remove progress file: %v\n", err)
	}

	printSummary(w, summary)
	return summary, nil
}

func makeDirs(baseDir string) error {
	for _, dir := range []string{knowledge.DirName, summariesDirName, progressDirName} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			return fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}
	return nil
}

// lastN returns the most recent n entries.
func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func printSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "done: %d pages processed, %d with content, %d without, %d failed, %d points\n",
		s.Pages(), s.Extracted, s.NoContent, s.Failed, s.Points)
}
