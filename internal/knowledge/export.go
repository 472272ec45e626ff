// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

const exportLimit = 100000

// ExportYAML writes the indexed knowledge points to index/export.yaml. It
// supports the same filters as Retrieve.
func (ix *Index) ExportYAML(ctx context.Context, opts QueryOptions) error {
	entries, err := ix.exportEntries(ctx, opts)
	if err != nil {
		return err
	}

	path := filepath.Join(ix.baseDir, indexDir, "export.yaml")
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the indexed knowledge points to index/export.json. It
// supports the same filters as Retrieve.
func (ix *Index) ExportJSON(ctx context.Context, opts QueryOptions) error {
	entries, err := ix.exportEntries(ctx, opts)
	if err != nil {
		return err
	}

	path := filepath.Join(ix.baseDir, indexDir, "export.json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (ix *Index) exportEntries(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = exportLimit
	}
	results, err := ix.Retrieve(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	return results, nil
}
