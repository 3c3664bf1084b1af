package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/livematch/docstore"
	"github.com/Dosada05/livematch/models"
)

var (
	ErrDecodeMissingTitle = errors.New("document has no title")
	ErrDecodeMalformed    = errors.New("document fields do not match the tournament shape")
)

// tournamentDocument - форма полей документа в коллекции "tournaments".
// Идентификатор хранится отдельно, как ID документа.
type tournamentDocument struct {
	Title        *string                  `json:"title"`
	Description  *string                  `json:"description,omitempty"`
	Mode         string                   `json:"mode,omitempty"`
	Participants []string                 `json:"participants"`
	Matches      []models.TournamentMatch `json:"matches"`
	Events       []models.Event           `json:"events"`
	LogoKey      *string                  `json:"logoKey,omitempty"`
}

func decodeTournament(doc docstore.Document) (models.Tournament, error) {
	var raw tournamentDocument
	if err := json.Unmarshal(doc.Fields, &raw); err != nil {
		return models.Tournament{}, fmt.Errorf("%w: %s: %w", ErrDecodeMalformed, doc.ID, err)
	}
	if raw.Title == nil {
		return models.Tournament{}, fmt.Errorf("%w: %s", ErrDecodeMissingTitle, doc.ID)
	}

	id := doc.ID
	t := models.Tournament{
		ID:           &id,
		Title:        *raw.Title,
		Participants: raw.Participants,
		Matches:      raw.Matches,
		Events:       raw.Events,
		LogoKey:      raw.LogoKey,
	}
	if raw.Description != nil {
		t.Description = *raw.Description
	}
	if mode, err := models.ParseTournamentMode(raw.Mode); err == nil {
		t.Mode = mode
	} else if mode, ok := models.ModeFromTitle(t.Title); ok {
		t.Mode = mode
	}
	if t.Participants == nil {
		t.Participants = []string{}
	}
	if t.Matches == nil {
		t.Matches = []models.TournamentMatch{}
	}
	if t.Events == nil {
		t.Events = []models.Event{}
	}
	for i := range t.Events {
		if t.Events[i].Participants == nil {
			t.Events[i].Participants = []string{}
		}
	}
	return t, nil
}

// encodeTournament сериализует поля документа; ID турнира в поля не попадает.
func encodeTournament(t models.Tournament) (json.RawMessage, error) {
	title := t.Title
	description := t.Description
	doc := tournamentDocument{
		Title:        &title,
		Description:  &description,
		Mode:         string(t.Mode),
		Participants: t.Participants,
		Matches:      t.Matches,
		Events:       t.Events,
		LogoKey:      t.LogoKey,
	}
	if doc.Participants == nil {
		doc.Participants = []string{}
	}
	if doc.Matches == nil {
		doc.Matches = []models.TournamentMatch{}
	}
	if doc.Events == nil {
		doc.Events = []models.Event{}
	}

	fields, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tournament: %w", err)
	}
	return fields, nil
}
