package subscriber

import "sync/atomic"

// ID identifies one entry. IDs are unique for the life of the process.
type ID uint64

var lastID atomic.Uint64

// NextID returns a fresh process-unique ID.
func NextID() ID {
	return ID(lastID.Add(1))
}

// Entry is one subscription in a list.
type Entry[F any] struct {
	Fn F
	ID ID
}

// List is an ordered collection of callbacks.
type List[F any] struct {
	entries []Entry[F]
}

// New creates an empty list.
func New[F any]() *List[F] {
	return &List[F]{}
}

// Add appends fn unconditionally and returns the new entry's ID.
func (l *List[F]) Add(fn F) ID {
	id := NextID()
	l.entries = append(l.entries[:len(l.entries):len(l.entries)], Entry[F]{ID: id, Fn: fn})
	return id
}

// Remove deletes the first entry with the given ID.
// It reports whether an entry was removed; absent IDs are a no-op.
func (l *List[F]) Remove(id ID) bool {
	for i, e := range l.entries {
		if e.ID != id {
			continue
		}
		next := make([]Entry[F], 0, len(l.entries)-1)
		next = append(next, l.entries[:i]...)
		next = append(next, l.entries[i+1:]...)
		l.entries = next
		return true
	}
	return false
}

// Contains reports whether an entry with the given ID is present.
func (l *List[F]) Contains(id ID) bool {
	for _, e := range l.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (l *List[F]) Len() int {
	return len(l.entries)
}

// IsEmpty reports whether the list has no entries.
func (l *List[F]) IsEmpty() bool {
	return len(l.entries) == 0
}

// Snapshot returns the current entries. The returned slice is never modified
// by later Add or Remove calls.
func (l *List[F]) Snapshot() []Entry[F] {
	return l.entries
}

// Invoke calls visit for every entry present when Invoke was called, in
// insertion order, exactly once each.
func (l *List[F]) Invoke(visit func(ID, F)) {
	for _, e := range l.entries {
		visit(e.ID, e.Fn)
	}
}

// Clear removes every entry.
func (l *List[F]) Clear() {
	l.entries = nil
}
