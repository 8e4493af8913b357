// Package store defines the managed data collaborator: a subscribable
// collection of todo items.
package store

import (
	"context"
	"errors"

	"github.com/idilsaglam/cloudtodo/internal/model"
)

var (
	ErrNotFound = errors.New("item not found")
	ErrClosed   = errors.New("subscription closed")
)

// Update is one delivery on a subscription: either a full snapshot or a
// transient error. A transient error does not end the subscription.
type Update struct {
	Items model.Snapshot
	Err   error
}

// Subscription is a live query. Updates is closed after Close, or when the
// backend loses the subscription.
type Subscription interface {
	Updates() <-chan Update
	Close() error
}

// Collection is the todo collection of one owner.
type Collection interface {
	// Subscribe delivers the current snapshot first and a new one whenever
	// the collection changes.
	Subscribe(ctx context.Context) (Subscription, error)
	Create(ctx context.Context, content string) (model.Item, error)
	Delete(ctx context.Context, id string) error
}

// Backend hands out the collection belonging to a signed-in user.
type Backend interface {
	For(owner string) (Collection, error)
}
