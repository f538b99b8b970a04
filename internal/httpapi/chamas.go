package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/antoniostano/sauti/internal/chama"
)

const (
	defaultChamaLimit = 6
	maxChamaLimit     = 50
)

const detailChamaUnavailable = "Blockchain client not configured."

func (s *Server) handleListChamas(w http.ResponseWriter, r *http.Request) {
	if s.chamas == nil || !s.chamas.Ready() {
		respondError(w, http.StatusServiceUnavailable, "not_ready", detailChamaUnavailable)
		return
	}

	limit := defaultChamaLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusUnprocessableEntity, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = min(n, maxChamaLimit)
	}

	records, err := s.chamas.ListRecent(r.Context(), limit)
	if errors.Is(err, chama.ErrNotConfigured) {
		respondError(w, http.StatusServiceUnavailable, "not_ready", detailChamaUnavailable)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("list chamas failed")
		respondError(w, http.StatusBadGateway, "backend_failure", "Failed to load chamas.")
		return
	}
	if records == nil {
		records = []chama.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"chamas": records})
}
