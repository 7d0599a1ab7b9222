package pipeline

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/dgallion1/clausegest/internal/doctree"
)

// ToDocuments converts chunks to langchaingo documents. The flattened chunk
// metadata is extended with the chunk id and index and the document id.
func ToDocuments(ref doctree.DocRef, chunks []doctree.Chunk) []schema.Document {
	docs := make([]schema.Document, 0, len(chunks))
	for _, ch := range chunks {
		md := ch.Metadata.Map()
		md["chunk_id"] = ch.ID
		md["chunk_index"] = ch.Index
		if ref.DocID != "" {
			md["doc_id"] = ref.DocID
		}
		docs = append(docs, schema.Document{PageContent: ch.Text, Metadata: md})
	}
	return docs
}

// VectorStoreIndexer hands chunks to a langchaingo vector store.
type VectorStoreIndexer struct {
	store     vectorstores.VectorStore
	namespace string
}

// NewVectorStoreIndexer wraps store. A non-empty namespace is passed on
// every AddDocuments call.
func NewVectorStoreIndexer(store vectorstores.VectorStore, namespace string) *VectorStoreIndexer {
	return &VectorStoreIndexer{store: store, namespace: namespace}
}

func (v *VectorStoreIndexer) Index(ctx context.Context, ref doctree.DocRef, chunks []doctree.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	var opts []vectorstores.Option
	if v.namespace != "" {
		opts = append(opts, vectorstores.WithNameSpace(v.namespace))
	}
	ids, err := v.store.AddDocuments(ctx, ToDocuments(ref, chunks), opts...)
	if err != nil {
		return fmt.Errorf("vector store add: %w", err)
	}
	if len(ids) != 0 && len(ids) != len(chunks) {
		return fmt.Errorf("vector store add: stored %d of %d chunks", len(ids), len(chunks))
	}
	return nil
}
