// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfsource provides sequential per-page text access to a PDF book.
package pdfsource

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// Source is an open PDF document. Pages are 1-indexed, matching the page
// numbers shown to the operator.
type Source struct {
	file   *os.File
	reader *pdf.Reader
}

// Open opens the PDF at path. A document that cannot be opened or parsed at
// all is a fatal condition for the caller.
func Open(path string) (*Source, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	return &Source{file: file, reader: reader}, nil
}

// Close releases the underlying file handle.
func (s *Source) Close() error {
	return s.file.Close()
}

// NumPages returns the total page count of the document.
func (s *Source) NumPages() int {
	return s.reader.NumPage()
}

// PageText extracts the plain text of one page. A page that exists but has
// no extractable text yields an empty string, not an error.
func (s *Source) PageText(page int) (text string, err error) {
	if page < 1 || page > s.reader.NumPage() {
		return "", fmt.Errorf("page %d out of range 1..%d", page, s.reader.NumPage())
	}

	// The pdf library panics on some malformed content streams; treat that
	// as a per-page read failure rather than taking down the run.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("extracting text from page %d: %v", page, r)
		}
	}()

	p := s.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}

	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extracting text from page %d: %w", page, err)
	}
	return text, nil
}
