package pathstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"
)

// Indexer writes chunked contracts into pathstore under
//
//	{prefix}/{user}/contracts/{doc}/meta
//	{prefix}/{user}/contracts/{doc}/chunks/{seq}
//	{prefix}/{user}/contracts/{doc}/clauses/{clause}
//	{prefix}/{user}/contracts/by_hash/{hash}
//
// Cross references become links between clause nodes.
type Indexer struct {
	client *Client
	prefix string
}

// NewIndexer returns an Indexer rooted at prefix ("memory/users" if empty).
func NewIndexer(client *Client, prefix string) *Indexer {
	if prefix == "" {
		prefix = "memory/users"
	}
	return &Indexer{client: client, prefix: strings.TrimRight(prefix, "/")}
}

func (ix *Indexer) userRoot(userID string) string {
	if userID == "" {
		userID = "default"
	}
	return ix.prefix + "/" + keySegment(userID) + "/contracts"
}

func (ix *Indexer) docRoot(ref doctree.DocRef) string {
	return ix.userRoot(ref.UserID) + "/" + keySegment(ref.DocID)
}

// Index writes one node per chunk, a node per clause, document metadata and
// the content hash entry used by FindByHash. It stops at the first error.
func (ix *Indexer) Index(ctx context.Context, ref doctree.DocRef, chunks []doctree.Chunk) error {
	root := ix.docRoot(ref)
	source := "clausegest:" + ref.DocID

	clauses := map[string]string{}
	for i, ch := range chunks {
		err := ix.client.PutNode(ctx, fmt.Sprintf("%s/chunks/%d", root, i), NodeRequest{
			Value: map[string]any{
				"id":       ch.ID,
				"text":     ch.Text,
				"metadata": ch.Metadata.Map(),
			},
			MemoryType: "semantic",
			Salience:   0.5,
			Source:     source,
		})
		if err != nil {
			return err
		}
		if id := ch.Metadata.ClauseID(); id != "" && ch.Metadata.ClauseTitle != nil {
			clauses[id] = *ch.Metadata.ClauseTitle
		}
	}

	for id, title := range clauses {
		err := ix.client.PutNode(ctx, root+"/clauses/"+keySegment(id), NodeRequest{
			Value:      map[string]any{"clause": id, "title": title},
			MemoryType: "metacognitive",
			Salience:   0.3,
			Source:     source,
		})
		if err != nil {
			return err
		}
	}

	err := ix.client.PutNode(ctx, root+"/meta", NodeRequest{
		Value: map[string]any{
			"title":        ref.Title,
			"source":       ref.Source,
			"content_hash": ref.ContentHash,
			"pages":        ref.Pages,
			"chunks":       len(chunks),
		},
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	})
	if err != nil {
		return err
	}

	if ref.ContentHash == "" {
		return nil
	}
	return ix.client.PutNode(ctx, ix.userRoot(ref.UserID)+"/by_hash/"+ref.ContentHash, NodeRequest{
		Value:      map[string]any{"doc_id": ref.DocID},
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     source,
	})
}

// IndexReferences links the referring clause node to the referenced one.
func (ix *Indexer) IndexReferences(ctx context.Context, ref doctree.DocRef, edges []legal.Edge) error {
	root := ix.docRoot(ref) + "/clauses/"
	for _, e := range edges {
		err := ix.client.PutLink(ctx, LinkRequest{
			From:    root + keySegment(e.From),
			To:      root + keySegment(e.To),
			Weight:  1,
			Summary: "references",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FindByHash returns the doc id previously indexed with the same content.
func (ix *Indexer) FindByHash(ctx context.Context, userID, hash string) (string, bool, error) {
	node, err := ix.client.GetNode(ctx, ix.userRoot(userID)+"/by_hash/"+hash)
	if err != nil || node == nil {
		return "", false, err
	}
	if m, ok := node.Value.(map[string]any); ok {
		if id, ok := m["doc_id"].(string); ok && id != "" {
			return id, true, nil
		}
	}
	return "", false, nil
}

// DeleteDocument removes every node under the document.
func (ix *Indexer) DeleteDocument(ctx context.Context, userID, docID string) error {
	return ix.client.DeleteNode(ctx, ix.docRoot(doctree.DocRef{UserID: userID, DocID: docID}), true)
}

// keySegment makes a value safe to use as one path segment.
func keySegment(s string) string {
	r := strings.NewReplacer("/", "_", ".", "_", " ", "_", "(", "_", ")", "")
	return r.Replace(s)
}
