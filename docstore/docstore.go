// Package docstore is the boundary between the domain model and the document database.
// Documents are schemaless JSON objects grouped into named collections; subscriptions
// deliver full-collection snapshots rather than deltas.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentExists      = errors.New("document already exists")
	ErrInvalidCollection   = errors.New("invalid collection name")
	ErrInvalidFields       = errors.New("document fields must be a JSON object")
	ErrSubscriptionClosed  = errors.New("subscription closed")
	ErrStoreClosed         = errors.New("document store closed")
	ErrMutationNotAccepted = errors.New("document mutation returned no fields")
)

var collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// Document - сырой документ коллекции: идентификатор и JSON-поля.
type Document struct {
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"fields"`
}

// Snapshot - полный снимок коллекции либо ошибка транспорта.
// При Err != nil поле Documents пустое и не означает "коллекция пуста".
type Snapshot struct {
	Collection string
	Documents  []Document
	Err        error
	ReceivedAt time.Time
}

// MutateFunc получает текущие поля документа и возвращает новые.
type MutateFunc func(current json.RawMessage) (json.RawMessage, error)

// Store is implemented by the postgres and memory backends.
type Store interface {
	// Subscribe opens a live subscription. The first snapshot is delivered right away,
	// then a new one after every change, until Cancel is called or ctx is done.
	Subscribe(ctx context.Context, collection string) (*Subscription, error)
	// CreateDocument stores fields under a new store-assigned identifier.
	CreateDocument(ctx context.Context, collection string, fields json.RawMessage) (string, error)
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	// MutateDocument atomically replaces the fields of an existing document with fn's result.
	MutateDocument(ctx context.Context, collection, id string, fn MutateFunc) error
	Close() error
}

// ValidateCollection проверяет имя коллекции; оно же входит в имя канала уведомлений.
func ValidateCollection(name string) error {
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func validateFields(fields json.RawMessage) error {
	if len(fields) == 0 || !json.Valid(fields) {
		return ErrInvalidFields
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(fields, &obj); err != nil || obj == nil {
		return ErrInvalidFields
	}
	return nil
}
