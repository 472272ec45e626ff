// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

const progressDirName = "progress"

// progressRecord is the per-book checkpoint written after each processed
// page. A resumed run continues from LastPage+1 with the recorded analyses
// restored as summarizer context; the knowledge points themselves live in
// the knowledge base file.
type progressRecord struct {
	Book      string    `yaml:"book"`
	LastPage  int       `yaml:"last_page"`
	Points    int       `yaml:"points"`
	Analyses  []string  `yaml:"analyses,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func progressPath(baseDir, book string) string {
	return filepath.Join(baseDir, progressDirName, book+"_progress.yaml")
}

func saveProgress(baseDir string, rec progressRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := os.WriteFile(progressPath(baseDir, rec.Book), data, 0o644); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return nil
}

// loadProgress returns nil with no error when no checkpoint exists.
func loadProgress(baseDir, book string) (*progressRecord, error) {
	data, err := os.ReadFile(progressPath(baseDir, book))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress: %w", err)
	}

	var rec progressRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing progress: %w", err)
	}
	if rec.Book != book {
		return nil, fmt.Errorf("progress file is for book %q, not %q", rec.Book, book)
	}
	return &rec, nil
}

func clearProgress(baseDir, book string) error {
	err := os.Remove(progressPath(baseDir, book))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
