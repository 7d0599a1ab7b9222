package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/clausegest/internal/chunker"
	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"
	"github.com/dgallion1/clausegest/internal/parser"
)

// WorkerConfig holds the per-worker knobs.
type WorkerConfig struct {
	Parse          parser.Options
	ShortPageWords int
	// IndexSem bounds concurrent index calls across all workers.
	IndexSem chan struct{}
}

// Worker processes a single document job.
type Worker struct {
	chunker *chunker.Chunker
	indexer Indexer
	stats   *LatencyStats
	log     *slog.Logger
	cfg     WorkerConfig
}

func NewWorker(ch *chunker.Chunker, idx Indexer, stats *LatencyStats, log *slog.Logger, cfg WorkerConfig) *Worker {
	if idx == nil {
		idx = NopIndexer{}
	}
	if stats == nil {
		stats = NewLatencyStats(time.Hour)
	}
	if cfg.IndexSem == nil {
		cfg.IndexSem = make(chan struct{}, 1)
	}
	return &Worker{chunker: ch, indexer: idx, stats: stats, log: log, cfg: cfg}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "user_id", job.UserID)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.cfg.Parse)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	}
	job.SetTotalPages(len(doc.Pages))

	hash := ContentHashHex([]byte(DocumentText(doc)))
	job.SetContentHash(hash)

	// Phase 1.5: Dedup check
	if existing, ok := w.checkDuplicate(ctx, log, job.UserID, hash); ok && existing != job.DocID {
		log.Info("duplicate document, skipping", "existing_doc_id", existing)
		job.MarkDuplicate(existing)
		return
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	start := time.Now()
	chunks, err := ChunkDocument(ctx, w.chunker, doc, ChunkOptions{
		Extra:          job.Metadata(),
		ShortPageWords: w.cfg.ShortPageWords,
		OnPage:         func(int) { job.IncrPagesProcessed() },
	}, log)
	w.stats.Observe("chunk", time.Since(start))
	if err != nil {
		log.Error("chunking interrupted", "error", err)
		job.AddError(fmt.Sprintf("chunk: %s", err))
		job.SetStatus(StatusFailed, "chunking")
		return
	}
	for i := range chunks {
		chunks[i].ID = newULID()
	}
	job.SetChunksEmitted(len(chunks))
	log.Info("chunked document", "pages", len(doc.Pages), "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	graph := legal.NewRefGraph()
	for _, ch := range chunks {
		graph.AddText(ch.Metadata.ClauseID(), ch.Text)
	}
	job.SetReferences(graph.Len())

	// Phase 3: Index
	job.SetStatus(StatusIndexing, "indexing")
	ref := doctree.DocRef{
		DocID:       job.DocID,
		UserID:      job.UserID,
		Title:       doc.Title,
		Source:      doc.Source,
		ContentHash: hash,
		Pages:       len(doc.Pages),
	}

	start = time.Now()
	err = w.retry(ctx, log, "index", func() error {
		return w.indexer.Index(ctx, ref, chunks)
	})
	w.stats.Observe("index", time.Since(start))
	if err != nil {
		log.Error("index failed", "error", err)
		job.AddError(fmt.Sprintf("index: %s", err))
		job.SetStatus(StatusFailed, "indexing")
		return
	}
	job.SetChunksIndexed(len(chunks))

	hadErrors := false
	if ri, ok := w.indexer.(ReferenceIndexer); ok && graph.Len() > 0 {
		err := w.retry(ctx, log, "references", func() error {
			return ri.IndexReferences(ctx, ref, graph.Edges())
		})
		if err != nil {
			log.Error("reference index failed", "error", err)
			job.AddError(fmt.Sprintf("references: %s", err))
			hadErrors = true
		}
	}

	log.Info("indexing complete", "chunks", len(chunks), "references", graph.Len())
	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// retry runs fn under the shared index semaphore, retrying retryable errors.
func (w *Worker) retry(ctx context.Context, log *slog.Logger, op string, fn func() error) error {
	onRetry := func(attempt int, err error) {
		log.Warn("retryable "+op+" error", "attempt", attempt, "error", err)
	}
	return withRetry(ctx, onRetry, func() error {
		select {
		case w.cfg.IndexSem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-w.cfg.IndexSem }()
		return fn()
	})
}

// checkDuplicate looks the content hash up when the indexer supports it.
// Lookup errors are logged and treated as "not a duplicate".
func (w *Worker) checkDuplicate(ctx context.Context, log *slog.Logger, userID, hash string) (string, bool) {
	df, ok := w.indexer.(DuplicateFinder)
	if !ok {
		return "", false
	}
	docID, found, err := df.FindByHash(ctx, userID, hash)
	if err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
		return "", false
	}
	return docID, found
}
