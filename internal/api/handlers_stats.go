package api

import (
	"net/http"
)

func (s *Server) handleChunkingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"jobs":        s.orchestrator.JobCounts(),
		"latency":     s.orchestrator.Stats(),
		"chunker":     s.orchestrator.Chunker().Config(),
	})
}
