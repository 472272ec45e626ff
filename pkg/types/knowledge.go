// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PageResult is the structured outcome of extracting one page of a book.
// It is the exact shape the extraction model must return.
type PageResult struct {
	// HasContent reports whether the page carries substantive content.
	// Pages like tables of contents, indices, and running headers set it
	// to false.
	HasContent bool `json:"has_content" yaml:"has_content"`

	// Knowledge lists the new knowledge points the page contributes, in
	// the order the model produced them. Empty when HasContent is false.
	Knowledge []string `json:"knowledge" yaml:"knowledge"`
}
