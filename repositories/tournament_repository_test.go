package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/livematch/docstore"
	"github.com/Dosada05/livematch/docstore/mockstore"
	"github.com/Dosada05/livematch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitForState читает состояния наблюдателя, пока pred не выполнится.
func waitForState(t *testing.T, states <-chan State, pred func(State) bool) State {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case st, ok := <-states:
			require.True(t, ok, "observer channel closed")
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for repository state")
			return State{}
		}
	}
}

func afterVersion(v uint64) func(State) bool {
	return func(st State) bool { return st.Version > v }
}

// newControlledRepo возвращает репозиторий, подписка которого управляется тестом.
func newControlledRepo(t *testing.T) (*TournamentRepository, *docstore.Subscription, *mockstore.Store) {
	t.Helper()
	store := &mockstore.Store{}
	sub := docstore.NewSubscription(context.Background(), TournamentsCollection)
	store.On("Subscribe", mock.Anything, TournamentsCollection).Return(sub, nil).Once()

	repo := NewTournamentRepository(store, testLogger())
	require.NoError(t, repo.FetchTournaments(context.Background()))
	t.Cleanup(repo.Close)
	return repo, sub, store
}

func doc(id, fields string) docstore.Document {
	return docstore.Document{ID: id, Fields: json.RawMessage(fields)}
}

func TestTournamentRepository_skipsUndecodableDocuments(t *testing.T) {
	repo, sub, _ := newControlledRepo(t)
	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()

	sub.Publish(docstore.Snapshot{Documents: []docstore.Document{
		doc("t1", `{"title":"Spring Cup (1v1)","description":"d","participants":["a","b"],"matches":[],"events":[]}`),
		doc("bad-1", `{"description":"no title"}`),
		doc("t2", `{"title":"Summer Cup (2v2)"}`),
		doc("bad-2", `{"title":42}`),
		doc("bad-3", `{"title":"x","participants":"not an array"}`),
		doc("t3", `{"title":"Legacy","participants":[],"matches":[{"id":"m1","player1ID":"a","player2ID":"b","isComplete":false}]}`),
	}})

	st := waitForState(t, states, afterVersion(0))
	assert.NoError(t, st.Err)
	require.Len(t, st.Tournaments, 3)
	assert.ElementsMatch(t, []string{"bad-1", "bad-2", "bad-3"}, st.Skipped)

	assert.Equal(t, "t1", *st.Tournaments[0].ID)
	assert.Equal(t, "Spring Cup (1v1)", st.Tournaments[0].Title)
	assert.Equal(t, models.ModeOneVOne, st.Tournaments[0].Mode)
	assert.Equal(t, []string{"a", "b"}, st.Tournaments[0].Participants)

	// отсутствующие списки декодируются в пустые
	assert.Equal(t, "Summer Cup (2v2)", st.Tournaments[1].Title)
	assert.NotNil(t, st.Tournaments[1].Participants)
	assert.Empty(t, st.Tournaments[1].Participants)
	assert.NotNil(t, st.Tournaments[1].Matches)
	assert.NotNil(t, st.Tournaments[1].Events)

	assert.Len(t, st.Tournaments[2].Matches, 1)
	assert.Equal(t, models.TournamentMode(""), st.Tournaments[2].Mode)
}

func TestTournamentRepository_emptySnapshot(t *testing.T) {
	repo, sub, _ := newControlledRepo(t)
	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()

	sub.Publish(docstore.Snapshot{Documents: []docstore.Document{}})

	st := waitForState(t, states, afterVersion(0))
	assert.NoError(t, st.Err)
	assert.NotNil(t, st.Tournaments)
	assert.Empty(t, st.Tournaments)
	assert.Empty(t, st.Skipped)
}

func TestTournamentRepository_identicalSnapshotIsIdempotent(t *testing.T) {
	repo, sub, _ := newControlledRepo(t)
	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()

	snapshot := docstore.Snapshot{Documents: []docstore.Document{
		doc("t1", `{"title":"Spring Cup (1v1)","participants":["a"]}`),
		doc("t2", `{"title":"Summer Cup (2v2)","events":[{"id":"e1","title":"Final","description":"","date":"2024-05-01T18:00:00Z","participants":[]}]}`),
	}}

	sub.Publish(snapshot)
	first := waitForState(t, states, afterVersion(0))

	sub.Publish(snapshot)
	second := waitForState(t, states, afterVersion(first.Version))

	require.Len(t, second.Tournaments, len(first.Tournaments))
	for i := range first.Tournaments {
		assert.True(t, first.Tournaments[i].Equal(second.Tournaments[i]), "tournament %d differs", i)
	}
}

func TestTournamentRepository_transportErrorKeepsLastKnownList(t *testing.T) {
	repo, sub, _ := newControlledRepo(t)
	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()

	sub.Publish(docstore.Snapshot{Documents: []docstore.Document{doc("t1", `{"title":"Spring Cup (1v1)"}`)}})
	good := waitForState(t, states, afterVersion(0))
	require.Len(t, good.Tournaments, 1)

	errTransport := errors.New("connection reset")
	sub.Publish(docstore.Snapshot{Err: errTransport})
	failed := waitForState(t, states, afterVersion(good.Version))
	assert.ErrorIs(t, failed.Err, errTransport)
	require.Len(t, failed.Tournaments, 1)
	assert.Equal(t, "t1", *failed.Tournaments[0].ID)
	assert.Len(t, repo.Tournaments(), 1)

	// следующий успешный снимок сбрасывает ошибку
	sub.Publish(docstore.Snapshot{Documents: []docstore.Document{}})
	recovered := waitForState(t, states, afterVersion(failed.Version))
	assert.NoError(t, recovered.Err)
	assert.Empty(t, recovered.Tournaments)
}

func TestTournamentRepository_producerCloseReportsError(t *testing.T) {
	repo, sub, _ := newControlledRepo(t)
	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()

	sub.Close()

	st := waitForState(t, states, afterVersion(0))
	assert.ErrorIs(t, st.Err, docstore.ErrSubscriptionClosed)
}

func TestTournamentRepository_refetchCancelsPreviousSubscription(t *testing.T) {
	store := &mockstore.Store{}
	first := docstore.NewSubscription(context.Background(), TournamentsCollection)
	second := docstore.NewSubscription(context.Background(), TournamentsCollection)
	store.On("Subscribe", mock.Anything, TournamentsCollection).Return(first, nil).Once()
	store.On("Subscribe", mock.Anything, TournamentsCollection).Return(second, nil).Once()

	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()

	require.NoError(t, repo.FetchTournaments(context.Background()))
	require.NoError(t, repo.FetchTournaments(context.Background()))

	assert.Error(t, first.Context().Err())
	assert.NoError(t, second.Context().Err())
	store.AssertExpectations(t)
}

func TestTournamentRepository_subscribeError(t *testing.T) {
	store := &mockstore.Store{}
	errDown := errors.New("store is down")
	store.On("Subscribe", mock.Anything, TournamentsCollection).Return(nil, errDown)

	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()

	err := repo.FetchTournaments(context.Background())
	assert.ErrorIs(t, err, errDown)
}

func TestTournamentRepository_createBuildsLabelledDocument(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	defer store.Close()

	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()

	id, err := repo.CreateTournament(ctx, "Spring Cup", "Weekend games", models.ModeTwoVTwo)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := store.GetDocument(ctx, TournamentsCollection, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"title": "Spring Cup (2v2)",
		"description": "Weekend games",
		"mode": "twoVtwo",
		"participants": [],
		"matches": [],
		"events": []
	}`, string(stored.Fields))

	// без подписки кэш не меняется
	assert.Empty(t, repo.Tournaments())
}

func TestTournamentRepository_createInvalidMode(t *testing.T) {
	store := &mockstore.Store{}
	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()

	_, err := repo.CreateTournament(context.Background(), "Cup", "", models.TournamentMode("3v3"))
	assert.ErrorIs(t, err, models.ErrUnknownTournamentMode)
	store.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestTournamentRepository_createWriteErrorIsReturned(t *testing.T) {
	store := &mockstore.Store{}
	errWrite := errors.New("permission denied")
	store.On("CreateDocument", mock.Anything, TournamentsCollection, mock.Anything).Return("", errWrite)

	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()

	id, err := repo.CreateTournament(context.Background(), "Cup", "", models.ModeOneVOne)
	assert.ErrorIs(t, err, errWrite)
	assert.Empty(t, id)
	store.AssertExpectations(t)
}

func TestTournamentRepository_createdTournamentArrivesBySubscription(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	defer store.Close()

	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()
	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()

	require.NoError(t, repo.FetchTournaments(ctx))

	id, err := repo.CreateTournament(ctx, "Spring Cup", "", models.ModeFourFFA)
	require.NoError(t, err)

	st := waitForState(t, states, func(st State) bool { return len(st.Tournaments) == 1 })
	assert.Equal(t, id, *st.Tournaments[0].ID)
	assert.Equal(t, "Spring Cup (1v1v1v1)", st.Tournaments[0].Title)
	assert.Equal(t, models.ModeFourFFA, st.Tournaments[0].Mode)

	found, ok := repo.Tournament(id)
	require.True(t, ok)
	assert.True(t, found.Equal(st.Tournaments[0]))

	_, ok = repo.Tournament("missing")
	assert.False(t, ok)
}

func TestTournamentRepository_mutations(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	defer store.Close()

	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()

	id, err := repo.CreateTournament(ctx, "Cup", "", models.ModeOneVOne)
	require.NoError(t, err)

	require.NoError(t, repo.AddParticipant(ctx, id, "alice"))
	require.NoError(t, repo.AddParticipant(ctx, id, "bob"))
	assert.ErrorIs(t, repo.AddParticipant(ctx, id, "alice"), ErrParticipantExists)
	assert.ErrorIs(t, repo.AddParticipant(ctx, "missing", "alice"), ErrTournamentNotFound)

	eventID := "e1"
	date := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AddEvent(ctx, id, models.Event{ID: &eventID, Title: "Final", Date: date, Participants: []string{"alice"}}))

	matchID := "m1"
	err = repo.AppendMatches(ctx, id, func(current models.Tournament) ([]models.TournamentMatch, error) {
		return []models.TournamentMatch{{ID: &matchID, Player1ID: current.Participants[0], Player2ID: current.Participants[1]}}, nil
	})
	require.NoError(t, err)

	errRefused := errors.New("refused")
	err = repo.AppendMatches(ctx, id, func(models.Tournament) ([]models.TournamentMatch, error) {
		return nil, errRefused
	})
	assert.ErrorIs(t, err, errRefused)

	require.NoError(t, repo.SetLogoKey(ctx, id, "tournaments/x/logo.png"))

	stored, err := store.GetDocument(ctx, TournamentsCollection, id)
	require.NoError(t, err)
	got, err := decodeTournament(stored)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, got.Participants)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "Final", got.Events[0].Title)
	assert.True(t, date.Equal(got.Events[0].Date))
	require.Len(t, got.Matches, 1)
	assert.Equal(t, "alice", got.Matches[0].Player1ID)
	assert.Equal(t, "bob", got.Matches[0].Player2ID)
	assert.Nil(t, got.Matches[0].WinnerID)
	require.NotNil(t, got.LogoKey)
	assert.Equal(t, "tournaments/x/logo.png", *got.LogoKey)
}

func TestTournamentRepository_mutateCorruptDocument(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	defer store.Close()

	id, err := store.CreateDocument(ctx, TournamentsCollection, json.RawMessage(`{"description":"no title"}`))
	require.NoError(t, err)

	repo := NewTournamentRepository(store, testLogger())
	defer repo.Close()

	assert.ErrorIs(t, repo.AddParticipant(ctx, id, "alice"), ErrTournamentCorrupt)
}

func TestTournamentRepository_logoURLResolver(t *testing.T) {
	store := &mockstore.Store{}
	sub := docstore.NewSubscription(context.Background(), TournamentsCollection)
	store.On("Subscribe", mock.Anything, TournamentsCollection).Return(sub, nil)

	repo := NewTournamentRepository(store, testLogger(), WithLogoURLResolver(func(key string) string {
		return "https://cdn.example.com/" + key
	}))
	defer repo.Close()
	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()
	require.NoError(t, repo.FetchTournaments(context.Background()))

	sub.Publish(docstore.Snapshot{Documents: []docstore.Document{
		doc("t1", `{"title":"Cup","logoKey":"tournaments/t1/logo.png"}`),
		doc("t2", `{"title":"Cup 2"}`),
	}})

	st := waitForState(t, states, afterVersion(0))
	require.Len(t, st.Tournaments, 2)
	require.NotNil(t, st.Tournaments[0].LogoURL)
	assert.Equal(t, "https://cdn.example.com/tournaments/t1/logo.png", *st.Tournaments[0].LogoURL)
	assert.Nil(t, st.Tournaments[1].LogoURL)
}

func TestTournamentRepository_observers(t *testing.T) {
	repo, sub, _ := newControlledRepo(t)

	states, unsubscribe := repo.Subscribe()
	initial := <-states
	assert.Equal(t, uint64(0), initial.Version)
	assert.Empty(t, initial.Tournaments)

	unsubscribe()
	unsubscribe()
	_, ok := <-states
	assert.False(t, ok, "channel should be closed after unsubscribe")

	other, unsubscribeOther := repo.Subscribe()
	defer unsubscribeOther()
	<-other

	sub.Publish(docstore.Snapshot{Documents: []docstore.Document{doc("t1", `{"title":"Cup"}`)}})
	st := waitForState(t, other, afterVersion(0))
	assert.Len(t, st.Tournaments, 1)
}

func TestTournamentRepository_closeClosesObservers(t *testing.T) {
	store := &mockstore.Store{}
	sub := docstore.NewSubscription(context.Background(), TournamentsCollection)
	store.On("Subscribe", mock.Anything, TournamentsCollection).Return(sub, nil)

	repo := NewTournamentRepository(store, testLogger())
	require.NoError(t, repo.FetchTournaments(context.Background()))

	states, unsubscribe := repo.Subscribe()
	defer unsubscribe()
	<-states

	repo.Close()
	repo.Close()

	select {
	case _, ok := <-states:
		assert.False(t, ok)
	case <-time.After(waitTimeout):
		t.Fatal("observer channel was not closed")
	}
	assert.Error(t, sub.Context().Err(), "subscription should be cancelled")

	late, _ := repo.Subscribe()
	_, ok := <-late
	assert.False(t, ok)

	assert.ErrorIs(t, repo.FetchTournaments(context.Background()), ErrRepositoryClosed)
}
