package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/clausegest/internal/chunker"
	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"
)

type chunkOverrides struct {
	MaxTokens          int     `json:"max_tokens"`
	OverlapRatio       float64 `json:"overlap_ratio"`
	MinTitleWords      int     `json:"min_title_words"`
	MaxTitleWords      int     `json:"max_title_words"`
	HeaderOnlyMaxWords int     `json:"header_only_max_words"`
}

// apply returns base with every non-zero override set.
func (o *chunkOverrides) apply(base chunker.Config) chunker.Config {
	if o == nil {
		return base
	}
	if o.MaxTokens > 0 {
		base.MaxTokens = o.MaxTokens
	}
	if o.OverlapRatio > 0 {
		base.OverlapRatio = o.OverlapRatio
	}
	if o.MinTitleWords > 0 {
		base.MinTitleWords = o.MinTitleWords
	}
	if o.MaxTitleWords > 0 {
		base.MaxTitleWords = o.MaxTitleWords
	}
	if o.HeaderOnlyMaxWords > 0 {
		base.HeaderOnlyMaxWords = o.HeaderOnlyMaxWords
	}
	return base
}

type chunkRequest struct {
	Text       string          `json:"text"`
	Source     string          `json:"source"`
	PageNumber *int            `json:"page_number,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Stack      chunker.Stack   `json:"stack,omitempty"`
	Config     *chunkOverrides `json:"config,omitempty"`
}

type chunkResponse struct {
	Chunks []doctree.Chunk `json:"chunks"`
	Stack  chunker.Stack   `json:"stack"`
}

// handleChunk chunks one page synchronously. The returned stack is meant to
// be sent back with the next page of the same document.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Config != nil && (req.Config.OverlapRatio < 0 || req.Config.OverlapRatio >= 1) {
		jsonError(w, "overlap_ratio must be in [0, 1)", http.StatusBadRequest)
		return
	}
	for i, e := range req.Stack {
		if !chunker.IsClauseNumber(e.ClauseID) {
			jsonError(w, "invalid clause id in stack: "+e.ClauseID, http.StatusBadRequest)
			return
		}
		// Levels are derived from the id, whatever the client sent.
		id := chunker.CleanClauseID(e.ClauseID)
		req.Stack[i].ClauseID, req.Stack[i].Level = id, chunker.Level(id)
	}
	if req.PageNumber != nil && *req.PageNumber < 1 {
		jsonError(w, "page_number must be at least 1", http.StatusBadRequest)
		return
	}

	ch := s.orchestrator.Chunker()
	if req.Config != nil {
		ch = ch.WithConfig(req.Config.apply(ch.Config()))
	}
	res := ch.ChunkPage(chunker.PageInput{
		Text:       req.Text,
		Source:     req.Source,
		PageNumber: req.PageNumber,
		Extra:      req.Metadata,
		Stack:      req.Stack,
	})

	resp := chunkResponse{Chunks: res.Chunks, Stack: res.Stack}
	if resp.Chunks == nil {
		resp.Chunks = []doctree.Chunk{}
	}
	if resp.Stack == nil {
		resp.Stack = chunker.Stack{}
	}
	for i := range resp.Chunks {
		resp.Chunks[i].Index = i
	}
	writeJSON(w, http.StatusOK, resp)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// handleAnalyze reports the cross references and grid tables in a text.
// References are attributed to the clause whose chunk contains them.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := s.orchestrator.Chunker().ChunkPage(chunker.PageInput{Text: req.Text})
	graph := legal.NewRefGraph()
	for _, ch := range res.Chunks {
		graph.AddText(ch.Metadata.ClauseID(), ch.Text)
	}

	edges := graph.Edges()
	if edges == nil {
		edges = []legal.Edge{}
	}
	tables := legal.ExtractTables(req.Text)
	if tables == nil {
		tables = []legal.Table{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"references": edges,
		"tables":     tables,
	})
}
