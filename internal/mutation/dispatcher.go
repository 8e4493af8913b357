// Package mutation issues create and delete requests against a collection.
// Results never touch the local list; the change shows up with the next
// snapshot.
package mutation

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/store"
)

type Op string

const (
	OpCreate Op = "create"
	OpDelete Op = "delete"
)

// Result reports how one request went. Err is nil on success.
type Result struct {
	Op  Op
	ID  string
	Err error
}

func (r Result) OK() bool { return r.Err == nil }

// ResultMsg carries a Result back into the Bubble Tea loop. Tag is the
// issuing dispatcher's Tag.
type ResultMsg struct {
	Result
	Tag uint64
}

type Dispatcher struct {
	// Tag is copied into every ResultMsg so the view can ignore results
	// from a session it has left.
	Tag uint64

	coll    store.Collection
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a dispatcher for coll. A zero timeout means none.
func New(coll store.Collection, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{coll: coll, timeout: timeout, logger: logger}
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

// Create sends content as-is; empty content is the collaborator's call.
func (d *Dispatcher) Create(ctx context.Context, content string) Result {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	it, err := d.coll.Create(ctx, content)
	res := Result{Op: OpCreate, ID: it.ID, Err: err}
	d.log(res)
	return res
}

func (d *Dispatcher) Delete(ctx context.Context, id string) Result {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	res := Result{Op: OpDelete, ID: id, Err: d.coll.Delete(ctx, id)}
	d.log(res)
	return res
}

func (d *Dispatcher) log(res Result) {
	if res.Err != nil {
		d.logger.Error("mutation failed", zap.String("op", string(res.Op)), zap.String("id", res.ID), zap.Error(res.Err))
		return
	}
	d.logger.Debug("mutation ok", zap.String("op", string(res.Op)), zap.String("id", res.ID))
}

func (d *Dispatcher) CreateCmd(ctx context.Context, content string) tea.Cmd {
	tag := d.Tag
	return func() tea.Msg { return ResultMsg{Result: d.Create(ctx, content), Tag: tag} }
}

func (d *Dispatcher) DeleteCmd(ctx context.Context, id string) tea.Cmd {
	tag := d.Tag
	return func() tea.Msg { return ResultMsg{Result: d.Delete(ctx, id), Tag: tag} }
}
