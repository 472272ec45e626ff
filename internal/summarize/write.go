// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// now is the clock used for summary headers. Tests override it for stable
// output.
var now = time.Now

// Write saves a summary as a markdown file under summariesDir and returns
// the path written. Final summaries use one canonical name per book;
// interval summaries embed the page number they were generated at, so
// repeated intervals never overwrite each other.
func Write(summariesDir, book, summary string, page int, final bool) (string, error) {
	var name string
	if final {
		name = book + "_final.md"
	} else {
		name = fmt.Sprintf("%s_interval_%04d.md", book, page)
	}
	path := filepath.Join(summariesDir, name)

	if err := os.WriteFile(path, []byte(document(book, summary, page, final)), 0o644); err != nil {
		return "", fmt.Errorf("writing summary %s: %w", path, err)
	}
	return path, nil
}

// document wraps the model output with a titled header and generation
// timestamp.
func document(book, summary string, page int, final bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Book Analysis: %s\n", book)
	if final {
		fmt.Fprintf(&b, "Final summary, generated on %s\n\n", now().UTC().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintf(&b, "Interval summary through page %d, generated on %s\n\n", page, now().UTC().Format("2006-01-02 15:04:05"))
	}
	b.WriteString(summary)
	if !strings.HasSuffix(summary, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
