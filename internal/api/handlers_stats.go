package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.orchestrator.Stats(),
	})
}

func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	if s.layouts == nil {
		jsonError(w, "layouts unavailable", http.StatusServiceUnavailable)
		return
	}
	names, err := s.layouts.List()
	if err != nil {
		jsonError(w, "failed to list layouts: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"layouts": names})
}
