// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns a knowledge base snapshot into a markdown study
// summary and writes interval and final summary files.
package summarize

import (
	"context"
	"fmt"
	"math"
	"time"
)

// AIBackend abstracts the summarization model call so tests can supply a
// mock. Implementations receive the knowledge points to cover and the most
// recent prior analyses as context, and return free-form markdown.
type AIBackend interface {
	Summarize(ctx context.Context, knowledge, previousAnalyses []string) (string, error)
}

// SummarizationError marks a failed summary generation. The pipeline logs
// it and skips that summary; the knowledge base is unaffected.
type SummarizationError struct {
	Page  int
	Final bool
	Err   error
}

func (e *SummarizationError) Error() string {
	if e.Final {
		return fmt.Sprintf("generating final summary: %v", e.Err)
	}
	return fmt.Sprintf("generating interval summary at page %d: %v", e.Page, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// noContentSummary is produced without a model call when the knowledge base
// is empty.
const noContentSummary = `## Summary

No knowledge points were collected from the processed pages. The pages seen
so far contained no substantive content (front matter, blank pages, or
unreadable text).
`

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Generate produces a markdown summary of the knowledge points. An empty
// knowledge base yields a minimal notice without calling the model. page is
// the page number the summary covers through (ignored for final summaries)
// and is carried into the error for diagnostics.
func Generate(ctx context.Context, backend AIBackend, knowledge, previousAnalyses []string, page int, final bool, maxRetries int) (string, error) {
	if len(knowledge) == 0 {
		return noContentSummary, nil
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", &SummarizationError{Page: page, Final: final, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		out, err := backend.Summarize(ctx, knowledge, previousAnalyses)
		if err == nil {
			if out == "" {
				err = fmt.Errorf("model returned an empty summary")
			} else {
				return out, nil
			}
		}
		lastErr = err
	}

	return "", &SummarizationError{Page: page, Final: final, Err: fmt.Errorf("after %d retries: %w", maxRetries, lastErr)}
}
