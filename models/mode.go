package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownTournamentMode = errors.New("unknown tournament mode")

// TournamentMode - формат сетки, выбираемый при создании турнира.
type TournamentMode string

const (
	ModeOneVOne TournamentMode = "oneVone"
	ModeTwoVTwo TournamentMode = "twoVtwo"
	ModeFourFFA TournamentMode = "fourFFA"
)

var modeLabels = map[TournamentMode]string{
	ModeOneVOne: "1v1",
	ModeTwoVTwo: "2v2",
	ModeFourFFA: "1v1v1v1",
}

// TournamentModes lists every mode in display order.
func TournamentModes() []TournamentMode {
	return []TournamentMode{ModeOneVOne, ModeTwoVTwo, ModeFourFFA}
}

// Label возвращает каноническую метку режима ("1v1", "2v2", "1v1v1v1").
// Для неизвестного значения возвращается пустая строка.
func (m TournamentMode) Label() string {
	return modeLabels[m]
}

func (m TournamentMode) IsValid() bool {
	_, ok := modeLabels[m]
	return ok
}

func (m TournamentMode) String() string {
	return string(m)
}

// ParseTournamentMode принимает как идентификатор ("twoVtwo"), так и метку ("2v2").
func ParseTournamentMode(s string) (TournamentMode, error) {
	for _, mode := range TournamentModes() {
		if s == string(mode) || s == mode.Label() {
			return mode, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTournamentMode, s)
}

func (m *TournamentMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownTournamentMode, string(data))
	}
	mode, err := ParseTournamentMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
