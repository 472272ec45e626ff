// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// QueryOptions holds parameters for index queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string.
	Query string

	// Book filters to one book's knowledge points.
	Book string

	// MaxResults limits result count. Zero uses the index default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Book == ""
}

// QueryResult is one knowledge point with its position in the source book.
type QueryResult struct {
	Book    string `json:"book" yaml:"book"`
	Seq     int    `json:"seq" yaml:"seq"`
	Content string `json:"content" yaml:"content"`
}

// Retrieve queries the index with optional full-text search and a book
// filter. Full-text queries are ranked by relevance; book-only queries come
// back in extraction order.
func (ix *Index) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = ix.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT p.book, p.seq, p.content
			FROM points_fts
			JOIN points p ON p.rowid = points_fts.rowid
			WHERE points_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT p.book, p.seq, p.content
			FROM points p
			WHERE 1=1`)
	}

	if opts.Book != "" {
		qb.WriteString(` AND p.book = ?`)
		args = append(args, opts.Book)
	}

	if useFTS {
		qb.WriteString(` ORDER BY points_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.book, p.seq`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := ix.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var qr QueryResult
		if err := rows.Scan(&qr.Book, &qr.Seq, &qr.Content); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, qr)
	}

	return results, rows.Err()
}
