package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/livematch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTournament_modeFallsBackToTitle(t *testing.T) {
	tests := []struct {
		fields   string
		expected models.TournamentMode
	}{
		{fields: `{"title":"Cup (2v2)","mode":"oneVone"}`, expected: models.ModeOneVOne},
		{fields: `{"title":"Cup (2v2)"}`, expected: models.ModeTwoVTwo},
		{fields: `{"title":"Cup (1v1v1v1)","mode":"bogus"}`, expected: models.ModeFourFFA},
		{fields: `{"title":"Cup"}`, expected: ""},
	}

	for _, tc := range tests {
		tr, err := decodeTournament(doc("t1", tc.fields))
		require.NoError(t, err, tc.fields)
		assert.Equal(t, tc.expected, tr.Mode, tc.fields)
	}
}

func TestDecodeTournament_rejects(t *testing.T) {
	_, err := decodeTournament(doc("t1", `{"description":"x"}`))
	assert.True(t, errors.Is(err, ErrDecodeMissingTitle))

	_, err = decodeTournament(doc("t1", `{"title":null}`))
	assert.True(t, errors.Is(err, ErrDecodeMissingTitle))

	_, err = decodeTournament(doc("t1", `{"title":"x","events":[{"date":"yesterday"}]}`))
	assert.True(t, errors.Is(err, ErrDecodeMalformed))

	_, err = decodeTournament(doc("t1", `{"title":"x","matches":[{"isComplete":"no"}]}`))
	assert.True(t, errors.Is(err, ErrDecodeMalformed))
}

func TestDecodeTournament_winnerInvariantNotEnforcedOnRead(t *testing.T) {
	tr, err := decodeTournament(doc("t1", `{"title":"x","matches":[{"player1ID":"a","player2ID":"b","winnerID":"z","isComplete":false}]}`))
	require.NoError(t, err)
	require.Len(t, tr.Matches, 1)
	assert.Error(t, tr.Matches[0].Validate())
}

func TestEncodeDecodeKeepsEventParticipants(t *testing.T) {
	date := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	in := models.NewTournament("Cup", "", models.ModeOneVOne)
	in.Events = append(in.Events, models.Event{Title: "Final", Date: date})

	fields, err := encodeTournament(in)
	require.NoError(t, err)

	out, err := decodeTournament(doc("t1", string(fields)))
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.NotNil(t, out.Events[0].Participants)
	assert.True(t, date.Equal(out.Events[0].Date))
	assert.Equal(t, "t1", *out.ID)
}

func TestStateView(t *testing.T) {
	v := State{}.View()
	assert.NotNil(t, v.Tournaments)
	assert.NotNil(t, v.Skipped)
	assert.Empty(t, v.Error)
	assert.Nil(t, v.UpdatedAt)

	now := time.Now()
	v = State{Err: errors.New("offline"), UpdatedAt: now, Version: 2}.View()
	assert.Equal(t, "offline", v.Error)
	require.NotNil(t, v.UpdatedAt)
	assert.True(t, now.Equal(*v.UpdatedAt))
}
