package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/dgallion1/clausegest/internal/chunker"
	"github.com/dgallion1/clausegest/internal/doctree"
)

// ChunkOptions controls ChunkDocument.
type ChunkOptions struct {
	Source string         // overrides doc.Source when set
	Extra  map[string]any // copied into every chunk

	// Pages with at most this many words are kept whole and not parsed
	// for headers. Zero disables.
	ShortPageWords int

	// OnPage is called after each page with its 0-based position.
	OnPage func(i int)
}

// ChunkDocument chunks the pages of doc in order, threading the clause stack
// from page to page, and numbers the chunks. A page whose scan panics is
// kept whole and tagged with fallback=true. Cancellation is checked between
// pages; on cancellation the chunks so far are returned with ctx.Err().
func ChunkDocument(ctx context.Context, ch *chunker.Chunker, doc *doctree.Document, opts ChunkOptions, log *slog.Logger) ([]doctree.Chunk, error) {
	if log == nil {
		log = slog.Default()
	}
	source := opts.Source
	if source == "" {
		source = doc.Source
	}

	var chunks []doctree.Chunk
	var stack chunker.Stack
	for i, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return chunks, err
		}
		in := chunker.PageInput{
			Text:       page.Text,
			Source:     source,
			PageNumber: doctree.PageRef(page.Number),
			Extra:      opts.Extra,
			Stack:      stack,
		}

		var res chunker.PageResult
		if opts.ShortPageWords > 0 && len(strings.Fields(page.Text)) <= opts.ShortPageWords {
			res = ch.WholePage(in)
		} else {
			res = chunkPage(ch, in, log.With("page", page.Number))
		}

		for _, c := range res.Chunks {
			c.Index = len(chunks)
			chunks = append(chunks, c)
		}
		stack = res.Stack
		if opts.OnPage != nil {
			opts.OnPage(i)
		}
	}
	return chunks, nil
}

// chunkPage runs the header-aware scan and falls back to a whole-page chunk
// if it panics.
func chunkPage(ch *chunker.Chunker, in chunker.PageInput, log *slog.Logger) (res chunker.PageResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("page chunking failed, keeping page whole", "panic", fmt.Sprint(r))
			extra := maps.Clone(in.Extra)
			if extra == nil {
				extra = map[string]any{}
			}
			extra["fallback"] = true
			in.Extra = extra
			res = ch.WholePage(in)
		}
	}()
	return ch.ChunkPage(in)
}

// DocumentText joins page texts for hashing.
func DocumentText(doc *doctree.Document) string {
	parts := make([]string, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\f")
}
