package handler

import (
	"net/http"

	"github.com/vmarket/vmarket/internal/domain"
)

// StatusHandler serves static runtime information for the dashboard.
type StatusHandler struct {
	Mode     string
	Rooms    []domain.Room
	Leagues  []domain.League
	Timezone string
}

// GetStatus responds with mode, rooms, leagues and timezone.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":     h.Mode,
		"rooms":    h.Rooms,
		"leagues":  h.Leagues,
		"timezone": h.Timezone,
	})
}
