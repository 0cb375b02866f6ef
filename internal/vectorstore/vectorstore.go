// Package vectorstore provides similarity search over post text so the
// aggregate stages can pull in related history beyond the current
// batch. The store is optional: a nil store degrades stages to the
// in-memory batch.
package vectorstore

import "context"

// VectorStore indexes documents for similarity search.
type VectorStore interface {
	// Add indexes a document under the given id. Re-adding an id
	// replaces the previous entry.
	Add(ctx context.Context, id string, text string, metadata map[string]string) error

	// Search returns up to limit documents ranked by similarity to the
	// query text, highest first.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// DeleteOlderThan drops entries indexed before the retention
	// cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float64
}
