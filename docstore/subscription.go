package docstore

import (
	"context"
	"sync"
)

// Subscription is the handle of a live subscription. The producer publishes snapshots
// and calls Close when it stops; the consumer reads Snapshots and calls Cancel.
//
// Delivery is latest-wins: a consumer that falls behind receives the newest snapshot,
// older undelivered ones are dropped.
type Subscription struct {
	collection string
	ctx        context.Context
	cancel     context.CancelFunc
	ch         chan Snapshot
	mu         sync.Mutex
	closed     bool
}

// NewSubscription creates a subscription bound to ctx. Store implementations and test
// doubles use it as the producer side.
func NewSubscription(ctx context.Context, collection string) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	return &Subscription{
		collection: collection,
		ctx:        subCtx,
		cancel:     cancel,
		ch:         make(chan Snapshot, 1),
	}
}

func (s *Subscription) Collection() string {
	return s.collection
}

// Snapshots is closed once the producer stops.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.ch
}

// Context is done after Cancel or when the parent context ends.
func (s *Subscription) Context() context.Context {
	return s.ctx
}

// Cancel stops the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Publish delivers snap, replacing an undelivered older snapshot if there is one.
// It reports false once the subscription is cancelled or closed.
func (s *Subscription) Publish(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ctx.Err() != nil {
		return false
	}
	if snap.Collection == "" {
		snap.Collection = s.collection
	}
	select {
	case s.ch <- snap:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
	return true
}

// Close is called by the producer when it stops; it closes the snapshot channel.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	close(s.ch)
}
