// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge persists a book's ordered knowledge points and builds a
// searchable index across books.
package knowledge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// DirName is the subdirectory under the base directory holding one
	// knowledge file per book.
	DirName = "knowledge_bases"

	// fileSuffix names knowledge files: <book>_knowledge.json.
	fileSuffix = "_knowledge.json"
)

// FilePath returns the knowledge file path for a book under baseDir.
func FilePath(baseDir, book string) string {
	return filepath.Join(baseDir, DirName, book+fileSuffix)
}

// knowledgeFile is the on-disk document shape.
type knowledgeFile struct {
	Knowledge []string `json:"knowledge"`
}

// Store persists one book's knowledge points as a JSON document. The file
// always mirrors the in-memory sequence after each page is processed; a
// reader never observes a partially written store.
type Store struct {
	path     string
	progress io.Writer
}

// NewStore binds a store to the knowledge file at path. Progress lines are
// written to progress.
func NewStore(path string, progress io.Writer) *Store {
	if progress == nil {
		progress = io.Discard
	}
	return &Store{path: path, progress: progress}
}

// Path returns the knowledge file path.
func (s *Store) Path() string { return s.path }

// Load reads the persisted knowledge points. A missing file is a fresh
// start and yields an empty base. A corrupt file also yields an empty base,
// with a warning, so a damaged store never blocks forward progress.
func (s *Store) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(s.progress, "starting with fresh knowledge base")
			return nil, nil
		}
		return nil, fmt.Errorf("reading knowledge base %s: %w", s.path, err)
	}

	var file knowledgeFile
	if err := json.Unmarshal(data, &file); err != nil {
		fmt.Fprintf(s.progress, "warning: knowledge base %s is corrupt (%v), starting fresh\n", s.path, err)
		return nil, nil
	}

	fmt.Fprintf(s.progress, "loaded %d existing knowledge points\n", len(file.Knowledge))
	return file.Knowledge, nil
}

// Save writes the full ordered sequence, replacing the prior state. The
// write goes through a temp file and rename so the store is replaced
// atomically.
func (s *Store) Save(points []string) error {
	fmt.Fprintf(s.progress, "saving knowledge base (%d points)\n", len(points))

	data, err := json.MarshalIndent(knowledgeFile{Knowledge: points}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling knowledge base: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp knowledge file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing knowledge base: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp knowledge file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing knowledge base %s: %w", s.path, err)
	}
	return nil
}
