package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/livematch/metrics"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	notifyChannelPrefix  = "docstore_"
	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		fields     JSONB       NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`

// SQLExecutor позволяет выполнять запросы как через *sql.DB, так и внутри *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore хранит документы в таблице documents (JSONB). Каждая запись
// публикует pg_notify в канал коллекции в той же транзакции; подписки слушают
// канал через pq.Listener и перечитывают коллекцию целиком.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
	newID  func() string

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewPostgresStore uses db for queries and dsn to open dedicated LISTEN connections.
func NewPostgresStore(db *sql.DB, dsn string, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		dsn:    dsn,
		logger: logger,
		newID:  uuid.NewString,
		subs:   make(map[*Subscription]struct{}),
	}
}

// EnsureSchema создаёт таблицу документов, если её ещё нет.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func notifyChannel(collection string) string {
	return notifyChannelPrefix + collection
}

func (s *PostgresStore) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.mu.Unlock()

	// Ошибки соединения приходят из горутины листенера; забираем последнюю.
	transportErrs := make(chan error, 1)
	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err == nil {
			return
		}
		s.logger.Warn("docstore listener event", slog.String("collection", collection), slog.Int("event", int(ev)), slog.Any("error", err))
		select {
		case transportErrs <- err:
		default:
		}
	})
	if err := listener.Listen(notifyChannel(collection)); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on collection %s: %w", collection, err)
	}

	sub := NewSubscription(ctx, collection)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = listener.Close()
		sub.Close()
		return nil, ErrStoreClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go s.listen(sub, listener, transportErrs)
	return sub, nil
}

func (s *PostgresStore) listen(sub *Subscription, listener *pq.Listener, transportErrs <-chan error) {
	collection := sub.Collection()
	defer func() {
		if err := listener.Close(); err != nil {
			s.logger.Warn("failed to close docstore listener", slog.String("collection", collection), slog.Any("error", err))
		}
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		sub.Close()
	}()

	ctx := sub.Context()
	reload := func() bool {
		docs, err := s.listDocuments(ctx, s.db, collection)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			return sub.Publish(Snapshot{Collection: collection, Err: err, ReceivedAt: time.Now()})
		}
		return sub.Publish(Snapshot{Collection: collection, Documents: docs, ReceivedAt: time.Now()})
	}

	if !reload() {
		return
	}

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case n, ok := <-listener.Notify:
			if !ok {
				sub.Publish(Snapshot{Collection: collection, Err: ErrSubscriptionClosed, ReceivedAt: time.Now()})
				return
			}
			// n == nil после переподключения: уведомления могли потеряться, перечитываем.
			if n != nil {
				s.logger.Debug("docstore notification", slog.String("collection", collection), slog.String("document_id", n.Extra))
			}
			drainNotifications(listener.Notify)
			if !reload() {
				return
			}

		case err := <-transportErrs:
			if !sub.Publish(Snapshot{Collection: collection, Err: fmt.Errorf("docstore transport: %w", err), ReceivedAt: time.Now()}) {
				return
			}

		case <-ping.C:
			go func() {
				if err := listener.Ping(); err != nil {
					s.logger.Warn("docstore listener ping failed", slog.String("collection", collection), slog.Any("error", err))
				}
			}()
		}
	}
}

// drainNotifications схлопывает накопившиеся уведомления в одну перезагрузку.
func drainNotifications(ch <-chan *pq.Notification) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (s *PostgresStore) listDocuments(ctx context.Context, exec SQLExecutor, collection string) ([]Document, error) {
	defer observe("list", collection, time.Now())

	query := `
		SELECT id, fields
		FROM documents
		WHERE collection = $1
		ORDER BY created_at, id`

	rows, err := exec.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			id     string
			fields []byte
		)
		if err := rows.Scan(&id, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan document in %s: %w", collection, err)
		}
		docs = append(docs, Document{ID: id, Fields: json.RawMessage(fields)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during document rows iteration in %s: %w", collection, err)
	}
	return docs, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, collection string, fields json.RawMessage) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := validateFields(fields); err != nil {
		return "", err
	}
	defer observe("create", collection, time.Now())

	id := s.newID()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`
		if _, err := tx.ExecContext(ctx, query, collection, id, string(fields)); err != nil {
			return handleDocumentError(err, collection, id)
		}
		return notify(ctx, tx, collection, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	defer observe("get", collection, time.Now())

	var fields []byte
	query := `SELECT fields FROM documents WHERE collection = $1 AND id = $2`
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&fields)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
		}
		return Document{}, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Fields: json.RawMessage(fields)}, nil
}

func (s *PostgresStore) MutateDocument(ctx context.Context, collection, id string, fn MutateFunc) error {
	defer observe("mutate", collection, time.Now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var fields []byte
		query := `SELECT fields FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, query, collection, id).Scan(&fields); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
			}
			return fmt.Errorf("failed to lock document %s/%s: %w", collection, id, err)
		}

		next, err := fn(json.RawMessage(fields))
		if err != nil {
			return err
		}
		if next == nil {
			return ErrMutationNotAccepted
		}
		if err := validateFields(next); err != nil {
			return err
		}

		update := `UPDATE documents SET fields = $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`
		result, err := tx.ExecContext(ctx, update, collection, id, string(next))
		if err != nil {
			return handleDocumentError(err, collection, id)
		}
		if err := checkAffectedRows(result, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)); err != nil {
			return err
		}
		return notify(ctx, tx, collection, id)
	})
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError // Возвращаем переданную ошибку "не найдено"
	}
	return nil
}

func notify(ctx context.Context, exec SQLExecutor, collection, id string) error {
	if _, err := exec.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel(collection), id); err != nil {
		return fmt.Errorf("failed to notify collection %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("failed to rollback docstore transaction", slog.Any("error", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func handleDocumentError(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s/%s", ErrDocumentExists, collection, id)
		case "22P02":
			return fmt.Errorf("%w: %s", ErrInvalidFields, pqErr.Message)
		}
	}
	return fmt.Errorf("document %s/%s: %w", collection, id, err)
}

func observe(operation, collection string, start time.Time) {
	metrics.DocstoreOperationDuration.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
}

// Close cancels open subscriptions. The *sql.DB stays owned by the caller.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subs {
		sub.Cancel()
	}
	return nil
}
