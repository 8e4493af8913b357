package model

import "time"

// Item is the domain model for a todo entry.
// ID is assigned by the backing collection and is opaque to the UI.
type Item struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is the full, ordered content of a collection at one point in time.
type Snapshot []Item

// Clone returns a copy that shares no backing array with s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Equal reports whether two snapshots hold the same items in the same order.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i].ID != o[i].ID || s[i].Content != o[i].Content {
			return false
		}
	}
	return true
}
