// Package store keeps chunked documents in a single SQLite database:
// document rows, their chunks with metadata, and clause cross references.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "data/clausegest.db"

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string // ":memory:" for an in-process database
}

// DocumentRecord is one indexed document.
type DocumentRecord struct {
	DocID       string    `json:"doc_id"`
	UserID      string    `json:"user_id,omitempty"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash"`
	PageCount   int       `json:"page_count"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SQLiteStore implements chunk indexing on SQLite. Safe for concurrent use.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database and applies migrations.
func NewStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id       TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			page_count   INTEGER NOT NULL DEFAULT 0,
			chunk_count  INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(user_id, content_hash)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id          TEXT PRIMARY KEY,
			doc_id      TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
			seq         INTEGER NOT NULL,
			page_number INTEGER,
			clause      TEXT,
			text        TEXT NOT NULL,
			metadata    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, seq)`,
		`CREATE TABLE IF NOT EXISTS refs (
			doc_id      TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
			from_clause TEXT NOT NULL,
			to_clause   TEXT NOT NULL,
			PRIMARY KEY (doc_id, from_clause, to_clause)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Index replaces a document's chunks in one transaction.
func (s *SQLiteStore) Index(ctx context.Context, ref doctree.DocRef, chunks []doctree.Chunk) error {
	if ref.DocID == "" {
		return fmt.Errorf("index: empty doc id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (doc_id, user_id, title, source, content_hash, page_count, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			source = excluded.source,
			content_hash = excluded.content_hash,
			page_count = excluded.page_count,
			chunk_count = excluded.chunk_count`,
		ref.DocID, ref.UserID, ref.Title, ref.Source, ref.ContentHash, ref.Pages, len(chunks),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, ref.DocID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_id, seq, page_number, clause, text, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, ch := range chunks {
		md, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk %d metadata: %w", i, err)
		}
		id := ch.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", ref.DocID, i)
		}
		var page, clause any
		if ch.Metadata.PageNumber != nil {
			page = *ch.Metadata.PageNumber
		}
		if ch.Metadata.Clause != nil {
			clause = *ch.Metadata.Clause
		}
		if _, err := stmt.ExecContext(ctx, id, ref.DocID, i, page, clause, ch.Text, string(md)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// IndexReferences replaces the stored cross references of a document.
func (s *SQLiteStore) IndexReferences(ctx context.Context, ref doctree.DocRef, edges []legal.Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE doc_id = ?`, ref.DocID); err != nil {
		return fmt.Errorf("clear refs: %w", err)
	}
	for _, e := range edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO refs (doc_id, from_clause, to_clause) VALUES (?, ?, ?)`,
			ref.DocID, e.From, e.To,
		); err != nil {
			return fmt.Errorf("insert ref %s->%s: %w", e.From, e.To, err)
		}
	}
	return tx.Commit()
}

// FindByHash looks up an existing document with the same content for a user.
func (s *SQLiteStore) FindByHash(ctx context.Context, userID, hash string) (string, bool, error) {
	var docID string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_id FROM documents WHERE user_id = ? AND content_hash = ? LIMIT 1`,
		userID, hash,
	).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find by hash: %w", err)
	}
	return docID, true, nil
}

const documentColumns = `doc_id, user_id, title, source, content_hash, page_count, chunk_count, created_at`

// ListDocuments returns documents newest first. An empty userID lists all.
func (s *SQLiteStore) ListDocuments(ctx context.Context, userID string) ([]DocumentRecord, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, doc_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRecord
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocument returns one document or ErrNotFound.
func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE doc_id = ?`, docID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, ErrNotFound
	}
	return d, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (DocumentRecord, error) {
	var d DocumentRecord
	var created string
	if err := sc.Scan(&d.DocID, &d.UserID, &d.Title, &d.Source, &d.ContentHash, &d.PageCount, &d.ChunkCount, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("scan document: %w", err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return d, nil
}

// ListChunks returns a document's chunks in order. A non-empty clause keeps
// only chunks with that clause id anywhere on their hierarchy.
func (s *SQLiteStore) ListChunks(ctx context.Context, docID, clause string) ([]doctree.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, text, metadata FROM chunks WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	clause = strings.TrimSpace(clause)
	var chunks []doctree.Chunk
	for rows.Next() {
		var ch doctree.Chunk
		var md string
		if err := rows.Scan(&ch.ID, &ch.Index, &ch.Text, &md); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &ch.Metadata); err != nil {
			return nil, fmt.Errorf("decode chunk %s metadata: %w", ch.ID, err)
		}
		if clause != "" && !ch.Metadata.InClause(clause) {
			continue
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// ListReferences returns a document's cross references.
func (s *SQLiteStore) ListReferences(ctx context.Context, docID string) ([]legal.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_clause, to_clause FROM refs WHERE doc_id = ? ORDER BY from_clause, to_clause`, docID)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer rows.Close()

	var edges []legal.Edge
	for rows.Next() {
		var e legal.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("scan ref: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// DeleteDocument removes a document with its chunks and references.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
