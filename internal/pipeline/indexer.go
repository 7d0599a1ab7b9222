package pipeline

import (
	"context"

	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"
)

// Indexer receives the chunks of one document.
type Indexer interface {
	Index(ctx context.Context, ref doctree.DocRef, chunks []doctree.Chunk) error
}

// ReferenceIndexer is implemented by indexers that also keep the clause
// cross-reference graph.
type ReferenceIndexer interface {
	IndexReferences(ctx context.Context, ref doctree.DocRef, edges []legal.Edge) error
}

// DuplicateFinder is implemented by indexers that can look up a document by
// content hash.
type DuplicateFinder interface {
	FindByHash(ctx context.Context, userID, hash string) (docID string, found bool, err error)
}

// NopIndexer accepts and discards every document.
type NopIndexer struct{}

func (NopIndexer) Index(context.Context, doctree.DocRef, []doctree.Chunk) error { return nil }
