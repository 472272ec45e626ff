// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/book-analyzer/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "books.db"
)

// Index is the SQLite full-text index over knowledge points from all
// analyzed books.
type Index struct {
	db         *sql.DB
	baseDir    string
	maxResults int
}

// OpenIndex opens or creates the index database at baseDir/index/books.db,
// creating the schema if it does not exist.
func OpenIndex(cfg types.KnowledgeBaseConfig) (*Index, error) {
	dbDir := filepath.Join(cfg.BaseDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	ix := &Index{
		db:         db,
		baseDir:    cfg.BaseDir,
		maxResults: maxResults,
	}

	if err := ix.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return ix, nil
}

// Close releases the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS books (
			book TEXT PRIMARY KEY,
			points INTEGER NOT NULL,
			file_mod_time TEXT,
			indexed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS points (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			book TEXT NOT NULL REFERENCES books(book),
			seq INTEGER NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_book ON points(book)`,
	}

	for _, stmt := range statements {
		if _, err := ix.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := ix.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='points_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE points_fts USING fts5(content, content=points, content_rowid=rowid)`,
			`CREATE TRIGGER points_ai AFTER INSERT ON points BEGIN
				INSERT INTO points_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER points_ad AFTER DELETE ON points BEGIN
				INSERT INTO points_fts(points_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER points_au AFTER UPDATE ON points BEGIN
				INSERT INTO points_fts(points_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO points_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := ix.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// IngestSummary holds counts from an index run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of knowledge files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// HasFailures reports whether any knowledge file failed to index.
func (s IngestSummary) HasFailures() bool {
	return s.Failed > 0
}

// Ingest reads knowledge files from baseDir/knowledge_bases/ and populates
// the index. Unchanged files are skipped; changed books are re-indexed in
// full.
func (ix *Index) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	kbDir := filepath.Join(ix.baseDir, DirName)

	entries, err := os.ReadDir(kbDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading knowledge directory %s: %w", kbDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		book := strings.TrimSuffix(entry.Name(), fileSuffix)
		filePath := filepath.Join(kbDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", book, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = ix.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM books WHERE book = ?`, book,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", book)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		points, err := NewStore(filePath, io.Discard).Load()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", book, err)
			summary.Failed++
			continue
		}

		if err := ix.ingestBook(ctx, book, points, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", book, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d points)\n", book, len(points))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s (%d points)\n", book, len(points))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

func (ix *Index) ingestBook(ctx context.Context, book string, points []string, modTime string, isUpdate bool) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE book = ?`, book); err != nil {
			return fmt.Errorf("deleting old points: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO books (book, points, file_mod_time, indexed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(book) DO UPDATE SET
			points=excluded.points, file_mod_time=excluded.file_mod_time,
			indexed_at=excluded.indexed_at`,
		book, len(points), modTime, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting book: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (book, seq, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for seq, content := range points {
		if _, err := stmt.ExecContext(ctx, book, seq+1, content); err != nil {
			return fmt.Errorf("inserting point %d: %w", seq+1, err)
		}
	}

	return tx.Commit()
}
