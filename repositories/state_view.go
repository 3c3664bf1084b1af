package repositories

import (
	"time"

	"github.com/Dosada05/livematch/models"
)

// StateView - JSON-представление State для HTTP и websocket.
type StateView struct {
	Tournaments []models.Tournament `json:"tournaments"`
	Skipped     []string            `json:"skipped"`
	Error       string              `json:"error,omitempty"`
	Version     uint64              `json:"version"`
	UpdatedAt   *time.Time          `json:"updated_at,omitempty"`
}

func (s State) View() StateView {
	v := StateView{
		Tournaments: s.Tournaments,
		Skipped:     s.Skipped,
		Version:     s.Version,
	}
	if v.Tournaments == nil {
		v.Tournaments = []models.Tournament{}
	}
	if v.Skipped == nil {
		v.Skipped = []string{}
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}
