package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotEqual(t *testing.T) {
	a := Snapshot{{ID: "1", Content: "milk"}, {ID: "2", Content: "eggs"}}

	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(a[:1]))
	assert.False(t, a.Equal(Snapshot{{ID: "2", Content: "eggs"}, {ID: "1", Content: "milk"}}))
	assert.False(t, a.Equal(Snapshot{{ID: "1", Content: "milk"}, {ID: "2", Content: "bread"}}))
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	a := Snapshot{{ID: "1", Content: "milk"}}
	b := a.Clone()
	b[0].Content = "oat milk"

	assert.Equal(t, "milk", a[0].Content)
}
