package httpapi

import (
	"net/http"

	"github.com/antoniostano/sauti/internal/observability"
)

func (s *Server) handlePerfLatency(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, observability.StageSnapshot{Stages: []observability.StageStats{}})
		return
	}
	if r.URL.Query().Get("reset") == "true" {
		snap := s.metrics.StageSnapshot()
		s.metrics.ResetStageWindow()
		respondJSON(w, http.StatusOK, snap)
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.StageSnapshot())
}
