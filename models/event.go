package models

import (
	"slices"
	"time"
)

// Event - запланированное LIVE-событие турнира.
type Event struct {
	ID           *string   `json:"id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Date         time.Time `json:"date"`
	Participants []string  `json:"participants"`
}

func (e Event) Equal(o Event) bool {
	return equalStringPtr(e.ID, o.ID) &&
		e.Title == o.Title &&
		e.Description == o.Description &&
		e.Date.Equal(o.Date) &&
		slices.Equal(e.Participants, o.Participants)
}
