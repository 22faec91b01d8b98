package handlers

import (
	"context"
	"net/http"

	"medialog/services/stats"
)

type statsService interface {
	Overview(ctx context.Context, userID string) (stats.Overview, error)
}

var _ statsService = (*stats.Service)(nil)

// StatsHandler serves the aggregate statistics endpoint.
type StatsHandler struct {
	Service statsService
}

func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{Service: service}
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	overview, err := h.Service.Overview(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
