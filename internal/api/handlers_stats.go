package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	depth := 0
	if s.deps.Orchestrator != nil {
		depth = s.deps.Orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":     s.deps.Stats.Name(),
		"stats":       s.deps.Stats.Snapshot(),
		"queue_depth": depth,
	})
}
