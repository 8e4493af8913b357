package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/cloudtodo/internal/model"
)

func TestFeedKeepsOnlyLatest(t *testing.T) {
	f := NewFeed(nil)
	f.Publish(Update{Items: model.Snapshot{{ID: "1"}}})
	f.Publish(Update{Items: model.Snapshot{{ID: "1"}, {ID: "2"}}})

	u := <-f.Updates()
	assert.Len(t, u.Items, 2)

	select {
	case <-f.Updates():
		t.Fatal("older update should have been dropped")
	default:
	}
}

func TestFeedCloseIsIdempotent(t *testing.T) {
	calls := 0
	f := NewFeed(func() { calls++ })

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, 1, calls)
	assert.False(t, f.Publish(Update{}))

	_, open := <-f.Updates()
	assert.False(t, open)
	<-f.Done()
}

func TestFeedErrorDoesNotDisplaceSnapshot(t *testing.T) {
	f := NewFeed(nil)
	f.Publish(Update{Items: model.Snapshot{{ID: "1"}}})
	f.Publish(Update{Err: assert.AnError})

	u := <-f.Updates()
	assert.NoError(t, u.Err)
	assert.Len(t, u.Items, 1)
}
