package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/model"
	"github.com/idilsaglam/cloudtodo/internal/store"
)

// JSON-backed storage. Single file, human-readable, portable.
// Writes go through a temp file + rename so watchers never read half a file.
// Single-user: the owner passed to For is ignored.

type Store struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex // serializes read-modify-write within this process
	subsMu sync.Mutex
	subs   map[*subscription]struct{}
}

func New(path string, logger *zap.Logger) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("data path: %w", err)
	}
	return &Store{path: abs, logger: logger, subs: make(map[*subscription]struct{})}, nil
}

func (s *Store) For(string) (store.Collection, error) { return s, nil }

// Path is the absolute data file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Load() (model.Snapshot, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Snapshot{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(b) == 0 {
		return model.Snapshot{}, nil
	}
	var items model.Snapshot
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return items, nil
}

func (s *Store) save(items model.Snapshot) error {
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".todos-*.json")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, content string) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.Load()
	if err != nil {
		return model.Item{}, err
	}
	it := model.Item{ID: uuid.NewString(), Content: content, CreatedAt: time.Now().UTC()}
	if err := s.save(append(items, it)); err != nil {
		return model.Item{}, err
	}
	s.nudge()
	return it, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.Load()
	if err != nil {
		return err
	}
	for i, it := range items {
		if it.ID == id {
			if err := s.save(append(items[:i], items[i+1:]...)); err != nil {
				return err
			}
			s.nudge()
			return nil
		}
	}
	return store.ErrNotFound
}

// Subscribe watches the data file's directory and pushes a snapshot whenever
// the file content changes, including edits made by other processes.
func (s *Store) Subscribe(ctx context.Context) (store.Subscription, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	sub := &subscription{watcher: w, poke: make(chan struct{}, 1)}
	sub.Feed = store.NewFeed(func() {
		s.subsMu.Lock()
		delete(s.subs, sub)
		s.subsMu.Unlock()
	})
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()

	go s.run(ctx, sub)
	return sub, nil
}

type subscription struct {
	*store.Feed
	watcher *fsnotify.Watcher
	poke    chan struct{}
}

func (s *Store) run(ctx context.Context, sub *subscription) {
	defer sub.watcher.Close()
	defer sub.Close()

	var last model.Snapshot
	publish := func(force bool) {
		items, err := s.Load()
		if err != nil {
			sub.Publish(store.Update{Err: err})
			return
		}
		if !force && items.Equal(last) {
			return
		}
		last = items
		sub.Publish(store.Update{Items: items.Clone()})
	}

	publish(true)
	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-sub.poke:
			publish(false)
		case ev, ok := <-sub.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				publish(false)
			}
		case err, ok := <-sub.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error", zap.String("path", s.path), zap.Error(err))
			sub.Publish(store.Update{Err: err})
		}
	}
}

// nudge asks every local subscription to re-read without waiting for fsnotify.
func (s *Store) nudge() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs {
		select {
		case sub.poke <- struct{}{}:
		default:
		}
	}
}
