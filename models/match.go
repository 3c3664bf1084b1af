package models

import (
	"errors"
	"fmt"
)

var (
	ErrMatchWinnerWhileIncomplete = errors.New("match winner is set while the match is not complete")
	ErrMatchWinnerNotPlayer       = errors.New("match winner is not one of the match players")
	ErrMatchPlayersRequired       = errors.New("match requires two distinct players")
)

// TournamentMatch - пара участников внутри турнира. WinnerID не задан, пока матч не завершён.
type TournamentMatch struct {
	ID         *string `json:"id,omitempty"`
	Player1ID  string  `json:"player1ID"`
	Player2ID  string  `json:"player2ID"`
	WinnerID   *string `json:"winnerID,omitempty"`
	IsComplete bool    `json:"isComplete"`
}

// Validate проверяет инвариант победителя. Документы, прочитанные из хранилища,
// этой проверкой не отбрасываются; она применяется к матчам, которые создаёт сервис.
func (m TournamentMatch) Validate() error {
	if m.Player1ID == "" || m.Player2ID == "" || m.Player1ID == m.Player2ID {
		return ErrMatchPlayersRequired
	}
	if m.WinnerID == nil {
		return nil
	}
	if !m.IsComplete {
		return ErrMatchWinnerWhileIncomplete
	}
	if *m.WinnerID != m.Player1ID && *m.WinnerID != m.Player2ID {
		return fmt.Errorf("%w: %q", ErrMatchWinnerNotPlayer, *m.WinnerID)
	}
	return nil
}

func (m TournamentMatch) Equal(o TournamentMatch) bool {
	return equalStringPtr(m.ID, o.ID) &&
		m.Player1ID == o.Player1ID &&
		m.Player2ID == o.Player2ID &&
		equalStringPtr(m.WinnerID, o.WinnerID) &&
		m.IsComplete == o.IsComplete
}
