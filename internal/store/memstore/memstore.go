// Package memstore is an in-process collection. Every subscriber sees every
// change immediately.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idilsaglam/cloudtodo/internal/model"
	"github.com/idilsaglam/cloudtodo/internal/store"
)

type Store struct {
	mu    sync.Mutex
	items model.Snapshot
	subs  map[*store.Feed]struct{}
	now   func() time.Time
}

func New(seed ...model.Item) *Store {
	return &Store{
		items: model.Snapshot(seed).Clone(),
		subs:  make(map[*store.Feed]struct{}),
		now:   time.Now,
	}
}

// For returns s for every owner; the memory backend is single-user.
func (s *Store) For(string) (store.Collection, error) { return s, nil }

func (s *Store) Subscribe(ctx context.Context) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var f *store.Feed
	f = store.NewFeed(func() {
		s.mu.Lock()
		delete(s.subs, f)
		s.mu.Unlock()
	})
	s.subs[f] = struct{}{}
	f.Publish(store.Update{Items: s.items.Clone()})

	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.Done():
		}
	}()
	return f, nil
}

func (s *Store) Create(ctx context.Context, content string) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	it := model.Item{ID: uuid.NewString(), Content: content, CreatedAt: s.now().UTC()}
	s.items = append(s.items, it)
	s.broadcast()
	return it, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			s.broadcast()
			return nil
		}
	}
	return store.ErrNotFound
}

// Items returns the current snapshot.
func (s *Store) Items() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// Subscribers reports how many subscriptions are open.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// broadcast must be called with s.mu held.
func (s *Store) broadcast() {
	for f := range s.subs {
		f.Publish(store.Update{Items: s.items.Clone()})
	}
}
