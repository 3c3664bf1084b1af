package mockstore

import (
	"context"
	"encoding/json"

	"github.com/Dosada05/livematch/docstore"
	"github.com/stretchr/testify/mock"
)

type Store struct {
	mock.Mock
}

func (s *Store) Subscribe(ctx context.Context, collection string) (*docstore.Subscription, error) {
	args := s.Called(ctx, collection)

	var sub *docstore.Subscription
	if args.Get(0) != nil {
		sub = args.Get(0).(*docstore.Subscription)
	}
	return sub, args.Error(1)
}

func (s *Store) CreateDocument(ctx context.Context, collection string, fields json.RawMessage) (string, error) {
	args := s.Called(ctx, collection, fields)
	return args.String(0), args.Error(1)
}

func (s *Store) GetDocument(ctx context.Context, collection, id string) (docstore.Document, error) {
	args := s.Called(ctx, collection, id)

	var doc docstore.Document
	if args.Get(0) != nil {
		doc = args.Get(0).(docstore.Document)
	}
	return doc, args.Error(1)
}

func (s *Store) MutateDocument(ctx context.Context, collection, id string, fn docstore.MutateFunc) error {
	args := s.Called(ctx, collection, id, fn)
	return args.Error(0)
}

func (s *Store) Close() error {
	args := s.Called()
	return args.Error(0)
}
