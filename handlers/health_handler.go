package handlers

import (
	"net/http"

	"github.com/Dosada05/livematch/services"
)

type HealthHandler struct {
	tournamentService services.TournamentService
}

func NewHealthHandler(ts services.TournamentService) *HealthHandler {
	return &HealthHandler{tournamentService: ts}
}

// Healthz сообщает о состоянии подписки: 503, пока последний снимок - ошибка.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	state := h.tournamentService.ListTournaments(r.Context())
	status := http.StatusOK
	body := jsonResponse{"status": "ok", "version": state.Version}
	if state.Err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["error"] = state.Err.Error()
	}
	if err := writeJSON(w, status, body, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
