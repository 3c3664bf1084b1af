package docstore

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDocument struct {
	fields json.RawMessage
	seq    uint64
}

type memoryWatcher struct {
	collection string
	notify     chan struct{}
	sub        *Subscription
}

// MemoryStore хранит документы в памяти процесса. Используется в тестах и в режиме
// DOCSTORE_DRIVER=memory; семантика подписок совпадает с PostgresStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryDocument
	watchers    map[*memoryWatcher]struct{}
	seq         uint64
	closed      bool
	newID       func() string
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]memoryDocument),
		watchers:    make(map[*memoryWatcher]struct{}),
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	w := &memoryWatcher{
		collection: collection,
		notify:     make(chan struct{}, 1),
		sub:        NewSubscription(ctx, collection),
	}
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	go s.watch(w)
	return w.sub, nil
}

func (s *MemoryStore) watch(w *memoryWatcher) {
	defer func() {
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
		w.sub.Close()
	}()

	for {
		if !w.sub.Publish(s.snapshot(w.collection)) {
			return
		}
		select {
		case <-w.sub.Context().Done():
			return
		case <-w.notify:
		}
	}
}

func (s *MemoryStore) snapshot(collection string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(docs[a].seq, docs[b].seq)
	})

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, Document{ID: id, Fields: slices.Clone(docs[id].fields)})
	}
	return Snapshot{Collection: collection, Documents: out, ReceivedAt: s.now()}
}

// notifyLocked будит подписчиков коллекции; вызывается под s.mu.
func (s *MemoryStore) notifyLocked(collection string) {
	for w := range s.watchers {
		if w.collection != collection {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, collection string, fields json.RawMessage) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := validateFields(fields); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	id := s.newID()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memoryDocument)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return "", fmt.Errorf("%w: %s/%s", ErrDocumentExists, collection, id)
	}
	s.seq++
	docs[id] = memoryDocument{fields: slices.Clone(fields), seq: s.seq}
	s.notifyLocked(collection)
	return id, nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}
	return Document{ID: id, Fields: slices.Clone(doc.fields)}, nil
}

func (s *MemoryStore) MutateDocument(ctx context.Context, collection, id string, fn MutateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}

	next, err := fn(slices.Clone(doc.fields))
	if err != nil {
		return err
	}
	if next == nil {
		return ErrMutationNotAccepted
	}
	if err := validateFields(next); err != nil {
		return err
	}
	doc.fields = slices.Clone(next)
	s.collections[collection][id] = doc
	s.notifyLocked(collection)
	return nil
}

// Close cancels every open subscription.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for w := range s.watchers {
		w.sub.Cancel()
	}
	return nil
}
