package store

import "sync"

// Feed is a Subscription whose pending update is replaced, not queued, when
// the reader falls behind. Snapshots are total, so only the latest matters.
type Feed struct {
	mu      sync.Mutex
	ch      chan Update
	done    chan struct{}
	closed  bool
	onClose func()
}

// NewFeed returns an open feed. onClose, if set, runs once on Close.
func NewFeed(onClose func()) *Feed {
	return &Feed{
		ch:      make(chan Update, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Publish delivers u, dropping an undelivered older update. An error update
// is itself dropped rather than displace a pending one. It reports false once
// the feed is closed.
func (f *Feed) Publish(u Update) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.ch <- u:
	default:
		if u.Err != nil {
			return true
		}
		select {
		case <-f.ch:
		default:
		}
		f.ch <- u
	}
	return true
}

func (f *Feed) Updates() <-chan Update { return f.ch }

// Done is closed when the feed is closed.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Close is safe to call more than once.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.ch)
	close(f.done)
	onClose := f.onClose
	f.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}
