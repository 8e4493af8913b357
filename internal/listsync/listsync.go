// Package listsync mirrors a live collection into Bubble Tea messages.
//
// A Handle is scoped to one signed-in session: the view starts it when the
// session resolves and closes it on sign-out or quit. Every message carries
// the handle's generation so the view can ignore anything from a handle it
// has already released.
package listsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/model"
	"github.com/idilsaglam/cloudtodo/internal/store"
)

// SnapshotMsg replaces the whole list.
type SnapshotMsg struct {
	Gen   uint64
	Items model.Snapshot
}

// ErrorMsg is a transient subscription error; updates keep coming.
type ErrorMsg struct {
	Gen uint64
	Err error
}

// FailedMsg means the subscription could not be re-established and the
// handle has stopped.
type FailedMsg struct {
	Gen uint64
	Err error
}

// RetryPolicy controls resubscription after the collaborator drops a
// subscription.
type RetryPolicy struct {
	Initial  time.Duration
	Max      time.Duration
	Attempts int
}

var DefaultRetryPolicy = RetryPolicy{Initial: 500 * time.Millisecond, Max: 10 * time.Second, Attempts: 5}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	return d
}

type Synchronizer struct {
	retry  RetryPolicy
	logger *zap.Logger
	gen    atomic.Uint64
}

func New(retry RetryPolicy, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{retry: retry, logger: logger}
}

// Handle is an active subscription.
type Handle struct {
	gen    uint64
	msgs   chan tea.Msg
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start subscribes to c. The first subscription error is returned directly;
// losses after that are retried per the policy.
func (s *Synchronizer) Start(ctx context.Context, c store.Collection) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := c.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	h := &Handle{
		gen:    s.gen.Add(1),
		msgs:   make(chan tea.Msg, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.pump(ctx, h, c, sub)
	return h, nil
}

func (s *Synchronizer) pump(ctx context.Context, h *Handle, c store.Collection, sub store.Subscription) {
	defer close(h.done)
	defer func() { sub.Close() }()

	for {
		u, ok := s.receive(ctx, sub)
		if ctx.Err() != nil {
			return
		}
		if ok {
			if u.Err != nil {
				h.send(ctx, ErrorMsg{Gen: h.gen, Err: u.Err})
			} else {
				h.send(ctx, SnapshotMsg{Gen: h.gen, Items: u.Items.Clone()})
			}
			continue
		}

		// Updates closed without Close: the collaborator lost us.
		sub.Close()
		next, err := s.resubscribe(ctx, c)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Error("subscription lost", zap.Error(err))
			h.send(ctx, FailedMsg{Gen: h.gen, Err: err})
			return
		}
		sub = next
	}
}

func (s *Synchronizer) receive(ctx context.Context, sub store.Subscription) (store.Update, bool) {
	select {
	case <-ctx.Done():
		return store.Update{}, false
	case u, ok := <-sub.Updates():
		return u, ok
	}
}

func (s *Synchronizer) resubscribe(ctx context.Context, c store.Collection) (store.Subscription, error) {
	err := store.ErrClosed
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		wait := s.retry.backoff(attempt)
		s.logger.Warn("resubscribing", zap.Int("attempt", attempt), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		var sub store.Subscription
		sub, err = c.Subscribe(ctx)
		if err == nil {
			return sub, nil
		}
	}
	return nil, err
}

// send replaces an undelivered message; snapshots are total so the newest
// one is all the view needs. A transient error never displaces a pending
// message.
func (h *Handle) send(ctx context.Context, msg tea.Msg) {
	if _, transient := msg.(ErrorMsg); transient {
		select {
		case h.msgs <- msg:
		default:
		}
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case h.msgs <- msg:
			return
		default:
		}
		select {
		case <-h.msgs:
		default:
		}
	}
}

// Gen identifies this handle in the messages it produces.
func (h *Handle) Gen() uint64 { return h.gen }

// Next waits for the next message. The view calls it again after handling
// each message. After Close it yields nil.
func (h *Handle) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-h.msgs:
			return msg
		case <-h.done:
			select {
			case msg := <-h.msgs:
				return msg
			default:
				return nil
			}
		}
	}
}

// Close releases the subscription and waits for the pump to stop. It is
// safe to call more than once.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}
