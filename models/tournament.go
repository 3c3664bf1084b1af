package models

import (
	"slices"
	"strings"
)

// Tournament представляет турнир, зеркалируемый из коллекции "tournaments".
// ID отсутствует (nil), пока хранилище не присвоит идентификатор документа.
type Tournament struct {
	ID           *string           `json:"id,omitempty"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Mode         TournamentMode    `json:"mode,omitempty"`
	Participants []string          `json:"participants"`
	Matches      []TournamentMatch `json:"matches"`
	Events       []Event           `json:"events"`
	LogoKey      *string           `json:"-"`
	LogoURL      *string           `json:"logo_url,omitempty"`
}

// NewTournament собирает турнир для отправки в хранилище: к названию добавляется
// метка режима, списки пустые.
func NewTournament(title, description string, mode TournamentMode) Tournament {
	return Tournament{
		Title:        title + " (" + mode.Label() + ")",
		Description:  description,
		Mode:         mode,
		Participants: []string{},
		Matches:      []TournamentMatch{},
		Events:       []Event{},
	}
}

// HasParticipant reports whether id is already registered.
func (t Tournament) HasParticipant(id string) bool {
	return slices.Contains(t.Participants, id)
}

// Equal сравнивает турниры по значению (nil и пустой список считаются равными).
func (t Tournament) Equal(o Tournament) bool {
	if !equalStringPtr(t.ID, o.ID) || !equalStringPtr(t.LogoKey, o.LogoKey) || !equalStringPtr(t.LogoURL, o.LogoURL) {
		return false
	}
	if t.Title != o.Title || t.Description != o.Description || t.Mode != o.Mode {
		return false
	}
	if !slices.Equal(t.Participants, o.Participants) {
		return false
	}
	if !slices.EqualFunc(t.Matches, o.Matches, TournamentMatch.Equal) {
		return false
	}
	return slices.EqualFunc(t.Events, o.Events, Event.Equal)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ModeFromTitle восстанавливает режим по суффиксу " (<метка>)" в названии.
// Нужен для документов, созданных без поля mode.
func ModeFromTitle(title string) (TournamentMode, bool) {
	for _, mode := range TournamentModes() {
		if strings.HasSuffix(title, " ("+mode.Label()+")") {
			return mode, true
		}
	}
	return "", false
}
