package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/livematch/docstore"
	"github.com/Dosada05/livematch/metrics"
	"github.com/Dosada05/livematch/models"
)

// TournamentsCollection - коллекция документов турниров.
const TournamentsCollection = "tournaments"

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentCorrupt  = errors.New("tournament document cannot be decoded")
	ErrParticipantExists  = errors.New("participant is already registered for this tournament")
	ErrRepositoryClosed   = errors.New("tournament repository closed")
)

// State - наблюдаемое состояние репозитория.
// Tournaments всегда содержит последний успешно применённый снимок; Err выставляется
// при ошибке транспорта и сбрасывается следующим успешным снимком.
// Получатели State не должны изменять срезы внутри него.
type State struct {
	Tournaments []models.Tournament
	Skipped     []string
	Err         error
	Version     uint64
	UpdatedAt   time.Time
}

// Option configures a TournamentRepository.
type Option func(*TournamentRepository)

// WithLogoURLResolver заполняет LogoURL по ключу логотипа при декодировании.
func WithLogoURLResolver(resolve func(key string) string) Option {
	return func(r *TournamentRepository) {
		r.resolveLogoURL = resolve
	}
}

// TournamentRepository владеет списком турниров процесса. Кэш перестраивается целиком
// на каждом снимке коллекции одной горутиной-применителем; наблюдатели получают
// новое состояние после каждого снимка.
type TournamentRepository struct {
	store          docstore.Store
	logger         *slog.Logger
	resolveLogoURL func(key string) string

	mu    sync.RWMutex
	state State

	obsMu     sync.Mutex
	observers map[int]chan State
	nextObsID int

	lifeMu    sync.Mutex
	sub       *docstore.Subscription
	stopApply context.CancelFunc
	applyDone chan struct{}
	closed    bool
}

func NewTournamentRepository(store docstore.Store, logger *slog.Logger, opts ...Option) *TournamentRepository {
	r := &TournamentRepository{
		store:     store,
		logger:    logger,
		observers: make(map[int]chan State),
		state: State{
			Tournaments: []models.Tournament{},
			Skipped:     []string{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchTournaments opens a live subscription on the tournaments collection, replacing
// the previous one if any. The subscription lives until ctx is done or Close is called.
func (r *TournamentRepository) FetchTournaments(ctx context.Context) error {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	if r.closed {
		return ErrRepositoryClosed
	}
	r.stopLocked()

	sub, err := r.store.Subscribe(ctx, TournamentsCollection)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TournamentsCollection, err)
	}

	applyCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	r.sub = sub
	r.stopApply = stop
	r.applyDone = done

	go r.applyLoop(applyCtx, sub, done)
	r.logger.Info("tournament subscription opened", slog.String("collection", TournamentsCollection))
	return nil
}

// stopLocked отменяет текущую подписку и ждёт завершения применителя.
func (r *TournamentRepository) stopLocked() {
	if r.sub == nil {
		return
	}
	r.stopApply()
	r.sub.Cancel()
	<-r.applyDone
	r.sub, r.stopApply, r.applyDone = nil, nil, nil
}

func (r *TournamentRepository) applyLoop(ctx context.Context, sub *docstore.Subscription, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if ctx.Err() == nil {
					r.apply(docstore.Snapshot{Collection: TournamentsCollection, Err: docstore.ErrSubscriptionClosed, ReceivedAt: time.Now()})
				}
				return
			}
			r.apply(snap)
		}
	}
}

func (r *TournamentRepository) apply(snap docstore.Snapshot) {
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = time.Now()
	}

	if snap.Err != nil {
		metrics.TransportErrors.WithLabelValues(TournamentsCollection).Inc()
		r.logger.Warn("tournament snapshot failed, keeping last known list", slog.Any("error", snap.Err))

		r.mu.Lock()
		st := r.state
		st.Err = snap.Err
		st.Version++
		st.UpdatedAt = snap.ReceivedAt
		r.state = st
		r.mu.Unlock()

		r.notify(st)
		return
	}

	tournaments := make([]models.Tournament, 0, len(snap.Documents))
	skipped := make([]string, 0)
	for _, doc := range snap.Documents {
		t, err := decodeTournament(doc)
		if err != nil {
			skipped = append(skipped, doc.ID)
			r.logger.Warn("skipping tournament document", slog.String("document_id", doc.ID), slog.Any("error", err))
			continue
		}
		r.populateLogoURL(&t)
		tournaments = append(tournaments, t)
	}

	metrics.SnapshotsApplied.WithLabelValues(TournamentsCollection).Inc()
	if len(skipped) > 0 {
		metrics.DocumentsSkipped.WithLabelValues(TournamentsCollection).Add(float64(len(skipped)))
	}

	r.mu.Lock()
	st := State{
		Tournaments: tournaments,
		Skipped:     skipped,
		Version:     r.state.Version + 1,
		UpdatedAt:   snap.ReceivedAt,
	}
	r.state = st
	r.mu.Unlock()

	r.logger.Debug("tournament snapshot applied", slog.Int("tournaments", len(tournaments)), slog.Int("skipped", len(skipped)))
	r.notify(st)
}

func (r *TournamentRepository) populateLogoURL(t *models.Tournament) {
	if r.resolveLogoURL == nil || t.LogoKey == nil || *t.LogoKey == "" {
		return
	}
	if url := r.resolveLogoURL(*t.LogoKey); url != "" {
		t.LogoURL = &url
	}
}

func (r *TournamentRepository) notify(st State) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for _, ch := range r.observers {
		select {
		case ch <- st:
		default:
			// Наблюдатель отстаёт: заменяем непрочитанное состояние последним.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// Subscribe registers an observer. The current state is delivered first; afterwards
// the channel receives every update, latest-wins for slow readers. The returned func
// unregisters the observer and closes the channel.
func (r *TournamentRepository) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	r.obsMu.Lock()
	if r.observers == nil {
		r.obsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := r.nextObsID
	r.nextObsID++
	r.observers[id] = ch
	ch <- r.State()
	r.obsMu.Unlock()
	metrics.Observers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.obsMu.Lock()
			defer r.obsMu.Unlock()
			if _, ok := r.observers[id]; ok {
				delete(r.observers, id)
				close(ch)
				metrics.Observers.Dec()
			}
		})
	}
}

// State returns the current state.
func (r *TournamentRepository) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Tournaments returns a copy of the cached list.
func (r *TournamentRepository) Tournaments() []models.Tournament {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Tournament, len(r.state.Tournaments))
	copy(out, r.state.Tournaments)
	return out
}

// Tournament ищет турнир в кэше.
func (r *TournamentRepository) Tournament(id string) (models.Tournament, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.state.Tournaments {
		if t.ID != nil && *t.ID == id {
			return t, true
		}
	}
	return models.Tournament{}, false
}

// CreateTournament отправляет новый турнир в хранилище и возвращает присвоенный ID.
// Кэш не обновляется: турнир появится в списке со следующим снимком подписки.
func (r *TournamentRepository) CreateTournament(ctx context.Context, title, description string, mode models.TournamentMode) (string, error) {
	if !mode.IsValid() {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownTournamentMode, mode)
	}

	t := models.NewTournament(title, description, mode)
	fields, err := encodeTournament(t)
	if err != nil {
		return "", err
	}

	id, err := r.store.CreateDocument(ctx, TournamentsCollection, fields)
	if err != nil {
		metrics.TournamentCreates.WithLabelValues("error").Inc()
		r.logger.Error("failed to create tournament", slog.String("title", t.Title), slog.Any("error", err))
		return "", fmt.Errorf("failed to create tournament: %w", err)
	}

	metrics.TournamentCreates.WithLabelValues("ok").Inc()
	r.logger.Info("tournament created", slog.String("tournament_id", id), slog.String("title", t.Title))
	return id, nil
}

// AddParticipant добавляет участника в конец списка.
func (r *TournamentRepository) AddParticipant(ctx context.Context, tournamentID, participantID string) error {
	return r.mutate(ctx, tournamentID, func(t *models.Tournament) error {
		if t.HasParticipant(participantID) {
			return ErrParticipantExists
		}
		t.Participants = append(t.Participants, participantID)
		return nil
	})
}

// AddEvent добавляет событие в конец списка событий турнира.
func (r *TournamentRepository) AddEvent(ctx context.Context, tournamentID string, event models.Event) error {
	return r.mutate(ctx, tournamentID, func(t *models.Tournament) error {
		t.Events = append(t.Events, event)
		return nil
	})
}

// AppendMatches calls build with the stored tournament and appends the matches it
// returns, within one atomic document mutation.
func (r *TournamentRepository) AppendMatches(ctx context.Context, tournamentID string, build func(models.Tournament) ([]models.TournamentMatch, error)) error {
	return r.mutate(ctx, tournamentID, func(t *models.Tournament) error {
		matches, err := build(*t)
		if err != nil {
			return err
		}
		t.Matches = append(t.Matches, matches...)
		return nil
	})
}

func (r *TournamentRepository) SetLogoKey(ctx context.Context, tournamentID, logoKey string) error {
	return r.mutate(ctx, tournamentID, func(t *models.Tournament) error {
		t.LogoKey = &logoKey
		return nil
	})
}

func (r *TournamentRepository) mutate(ctx context.Context, tournamentID string, fn func(t *models.Tournament) error) error {
	err := r.store.MutateDocument(ctx, TournamentsCollection, tournamentID, func(current json.RawMessage) (json.RawMessage, error) {
		t, err := decodeTournament(docstore.Document{ID: tournamentID, Fields: current})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTournamentCorrupt, err)
		}
		if err := fn(&t); err != nil {
			return nil, err
		}
		return encodeTournament(t)
	})
	if err != nil {
		if errors.Is(err, docstore.ErrDocumentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	return nil
}

// Close отменяет подписку, дожидается применителя и закрывает каналы наблюдателей.
func (r *TournamentRepository) Close() {
	r.lifeMu.Lock()
	if r.closed {
		r.lifeMu.Unlock()
		return
	}
	r.closed = true
	r.stopLocked()
	r.lifeMu.Unlock()

	r.obsMu.Lock()
	for id, ch := range r.observers {
		close(ch)
		delete(r.observers, id)
		metrics.Observers.Dec()
	}
	r.observers = nil
	r.obsMu.Unlock()
	r.logger.Info("tournament repository closed")
}
