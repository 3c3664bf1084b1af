package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func nextSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

// waitForDocuments читает снимки, пока их число документов не станет n.
func waitForDocuments(t *testing.T, sub *Subscription, n int) Snapshot {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			require.True(t, ok, "subscription closed")
			if len(snap.Documents) == n {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d documents", n)
			return Snapshot{}
		}
	}
}

func TestMemoryStore_subscribeDeliversInitialSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.CreateDocument(ctx, "tournaments", json.RawMessage(`{"title":"A"}`))
	require.NoError(t, err)

	sub, err := store.Subscribe(ctx, "tournaments")
	require.NoError(t, err)
	defer sub.Cancel()

	snap := nextSnapshot(t, sub)
	assert.NoError(t, snap.Err)
	assert.Equal(t, "tournaments", snap.Collection)
	require.Len(t, snap.Documents, 1)
	assert.JSONEq(t, `{"title":"A"}`, string(snap.Documents[0].Fields))
}

func TestMemoryStore_emptyCollection(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	sub, err := store.Subscribe(context.Background(), "tournaments")
	require.NoError(t, err)
	defer sub.Cancel()

	snap := nextSnapshot(t, sub)
	assert.NoError(t, snap.Err)
	assert.Empty(t, snap.Documents)
}

func TestMemoryStore_snapshotOnEveryChange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	sub, err := store.Subscribe(ctx, "tournaments")
	require.NoError(t, err)
	defer sub.Cancel()
	nextSnapshot(t, sub)

	first, err := store.CreateDocument(ctx, "tournaments", json.RawMessage(`{"title":"A"}`))
	require.NoError(t, err)
	second, err := store.CreateDocument(ctx, "tournaments", json.RawMessage(`{"title":"B"}`))
	require.NoError(t, err)

	snap := waitForDocuments(t, sub, 2)
	// порядок вставки сохраняется
	assert.Equal(t, first, snap.Documents[0].ID)
	assert.Equal(t, second, snap.Documents[1].ID)

	// другая коллекция не влияет на подписку
	_, err = store.CreateDocument(ctx, "other", json.RawMessage(`{"title":"C"}`))
	require.NoError(t, err)

	err = store.MutateDocument(ctx, "tournaments", first, func(current json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"title":"A2"}`), nil
	})
	require.NoError(t, err)

	snap = nextSnapshot(t, sub)
	require.Len(t, snap.Documents, 2)
	assert.JSONEq(t, `{"title":"A2"}`, string(snap.Documents[0].Fields))
}

func TestMemoryStore_createRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.CreateDocument(ctx, "Bad Name", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidCollection)

	_, err = store.CreateDocument(ctx, "tournaments", json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidFields)

	_, err = store.CreateDocument(ctx, "tournaments", json.RawMessage(`{`))
	assert.ErrorIs(t, err, ErrInvalidFields)
}

func TestMemoryStore_getAndMutate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.GetDocument(ctx, "tournaments", "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	err = store.MutateDocument(ctx, "tournaments", "missing", func(current json.RawMessage) (json.RawMessage, error) {
		return current, nil
	})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	id, err := store.CreateDocument(ctx, "tournaments", json.RawMessage(`{"title":"A"}`))
	require.NoError(t, err)

	errRejected := errors.New("rejected")
	err = store.MutateDocument(ctx, "tournaments", id, func(current json.RawMessage) (json.RawMessage, error) {
		return nil, errRejected
	})
	assert.ErrorIs(t, err, errRejected)

	err = store.MutateDocument(ctx, "tournaments", id, func(current json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrMutationNotAccepted)

	doc, err := store.GetDocument(ctx, "tournaments", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.JSONEq(t, `{"title":"A"}`, string(doc.Fields))
}

func TestMemoryStore_cancelClosesChannel(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	sub, err := store.Subscribe(context.Background(), "tournaments")
	require.NoError(t, err)
	nextSnapshot(t, sub)

	sub.Cancel()
	select {
	case _, ok := <-sub.Snapshots():
		assert.False(t, ok)
	case <-time.After(waitTimeout):
		t.Fatal("snapshot channel was not closed after cancel")
	}
}

func TestMemoryStore_close(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sub, err := store.Subscribe(ctx, "tournaments")
	require.NoError(t, err)
	nextSnapshot(t, sub)

	require.NoError(t, store.Close())

	select {
	case _, ok := <-sub.Snapshots():
		assert.False(t, ok)
	case <-time.After(waitTimeout):
		t.Fatal("snapshot channel was not closed after store close")
	}

	_, err = store.Subscribe(ctx, "tournaments")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.CreateDocument(ctx, "tournaments", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrStoreClosed)
}
