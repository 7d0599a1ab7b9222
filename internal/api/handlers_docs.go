package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"
	"github.com/dgallion1/clausegest/internal/pipeline"
	"github.com/dgallion1/clausegest/internal/store"
)

// handleListDocuments lists indexed documents, optionally for one user.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.catalog.ListDocuments(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleListChunks returns a document's chunks. ?clause=19 keeps chunks
// under clause 19; ?format=langchain returns langchaingo documents.
func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	chunks, err := s.catalog.ListChunks(r.Context(), doc.DocID, q.Get("clause"))
	if err != nil {
		jsonError(w, "failed to list chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}

	switch q.Get("format") {
	case "", "chunks":
		if chunks == nil {
			chunks = []doctree.Chunk{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"doc_id": doc.DocID, "chunks": chunks})
	case "langchain":
		ref := doctree.DocRef{DocID: doc.DocID, UserID: doc.UserID, Title: doc.Title, Source: doc.Source}
		writeJSON(w, http.StatusOK, map[string]any{"doc_id": doc.DocID, "documents": pipeline.ToDocuments(ref, chunks)})
	default:
		jsonError(w, "format must be chunks or langchain", http.StatusBadRequest)
	}
}

func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	edges, err := s.catalog.ListReferences(r.Context(), doc.DocID)
	if err != nil {
		jsonError(w, "failed to list references: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if edges == nil {
		edges = []legal.Edge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": doc.DocID, "references": edges})
}

// handleDeleteDocument deletes a document with its chunks and references.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	err := s.catalog.DeleteDocument(r.Context(), docID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

// lookupDocument writes a 404 or 500 and returns false when the document
// cannot be loaded.
func (s *Server) lookupDocument(w http.ResponseWriter, r *http.Request) (store.DocumentRecord, bool) {
	doc, err := s.catalog.GetDocument(r.Context(), chi.URLParam(r, "docID"))
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return doc, false
	}
	if err != nil {
		jsonError(w, "failed to load document: "+err.Error(), http.StatusInternalServerError)
		return doc, false
	}
	return doc, true
}
