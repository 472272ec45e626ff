// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract asks the extraction model whether one page of a book
// carries substantive content and, if so, which knowledge points it
// contributes.
package extract

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/book-analyzer/pkg/types"
)

// AIBackend abstracts the extraction model call so tests can supply a mock.
// Each implementation handles one page of raw text, given the knowledge
// accumulated so far as context, and returns the strictly-typed page result.
type AIBackend interface {
	ExtractPage(ctx context.Context, pageText string, currentKnowledge []string) (types.PageResult, error)
}

// ExtractionError marks a single page's extraction failure: the model call
// failed, the response was malformed, or the model refused. The pipeline
// treats it as zero knowledge points for that page and continues.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Page extracts knowledge points from one page of text. The accumulated
// knowledge base is passed through to the model as context so it avoids
// redundant extraction; page is the 1-indexed page number, used only for
// error reporting. Any failure comes back as an *ExtractionError.
func Page(ctx context.Context, backend AIBackend, pageText string, current []string, page, maxRetries int) (types.PageResult, error) {
	result, err := callWithRetry(ctx, backend, pageText, current, maxRetries)
	if err != nil {
		return types.PageResult{}, &ExtractionError{Page: page, Err: err}
	}

	return normalize(result), nil
}

// normalize enforces the PageResult contract at the model boundary: a page
// without content contributes nothing, and blank knowledge points are
// dropped.
func normalize(result types.PageResult) types.PageResult {
	if !result.HasContent {
		return types.PageResult{HasContent: false}
	}

	points := make([]string, 0, len(result.Knowledge))
	for _, p := range result.Knowledge {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			points = append(points, trimmed)
		}
	}

	return types.PageResult{HasContent: true, Knowledge: points}
}

// callWithRetry calls the AI backend with exponential backoff.
func callWithRetry(ctx context.Context, backend AIBackend, pageText string, current []string, maxRetries int) (types.PageResult, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return types.PageResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := backend.ExtractPage(ctx, pageText, current)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return types.PageResult{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
