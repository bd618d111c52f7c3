package registry

import (
	"context"
	"slices"

	"go.uber.org/multierr"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/subscriber"
)

type slot struct {
	list  *List
	state State
}

type bucket struct {
	slots [event.KindCount]*slot
}

// Registry maps (handle, kind) pairs to subscriber lists.
type Registry struct {
	buckets   map[callbridge.Handle]*bucket
	installer Installer
	observers []Observer
}

// New creates an empty registry that reports boundary crossings to installer.
func New(installer Installer) *Registry {
	return &Registry{
		buckets:   make(map[callbridge.Handle]*bucket),
		installer: installer,
	}
}

// AddObserver registers an observer for state transitions.
func (r *Registry) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// GetOrCreate returns the list for (h, kind), creating it if needed.
// Creating a list does not touch the native library.
// It returns nil for unrecognized kinds.
func (r *Registry) GetOrCreate(h callbridge.Handle, kind event.Kind) *List {
	if s := r.slot(h, kind, true); s != nil {
		return s.list
	}
	return nil
}

// Lookup returns the list for (h, kind) if one exists.
func (r *Registry) Lookup(h callbridge.Handle, kind event.Kind) (*List, bool) {
	s := r.slot(h, kind, false)
	if s == nil {
		return nil, false
	}
	return s.list, true
}

// Subscribe appends cb to the (h, kind) list. When the list was empty the
// trampoline is installed first; if that fails nothing is added.
func (r *Registry) Subscribe(ctx context.Context, h callbridge.Handle, kind event.Kind, cb event.Callback) (subscriber.ID, error) {
	if !kind.Valid() {
		return 0, errors.InvalidEnum(errors.PhaseSubscribe, kind, "Kind")
	}
	if cb == nil {
		return 0, errors.InvalidInput(errors.PhaseSubscribe, "nil callback")
	}

	s := r.slot(h, kind, true)
	id := s.list.Add(cb)

	if s.state == Registered {
		return id, nil
	}

	if err := r.installer.Install(ctx, h, kind); err != nil {
		s.list.Remove(id)
		r.prune(h)
		return 0, errors.Registration(errors.PhaseSubscribe, h, kind, err)
	}
	s.state = Registered
	r.notify(Transition{Key: Key{h, kind}, From: Unregistered, To: Registered})
	return id, nil
}

// Unsubscribe removes the entry id from the (h, kind) list and reports
// whether it was present. Unknown ids are a no-op. Removing the last entry
// uninstalls the trampoline.
func (r *Registry) Unsubscribe(ctx context.Context, h callbridge.Handle, kind event.Kind, id subscriber.ID) (bool, error) {
	s := r.slot(h, kind, false)
	if s == nil || !s.list.Remove(id) {
		return false, nil
	}

	if !s.list.IsEmpty() || s.state != Registered {
		return true, nil
	}

	if err := r.installer.Uninstall(ctx, h, kind); err != nil {
		return true, errors.Registration(errors.PhaseUnsubscribe, h, kind, err)
	}
	s.state = Unregistered
	r.notify(Transition{Key: Key{h, kind}, From: Registered, To: Unregistered})
	return true, nil
}

// State returns the registration state of (h, kind).
func (r *Registry) State(h callbridge.Handle, kind event.Kind) State {
	if s := r.slot(h, kind, false); s != nil {
		return s.state
	}
	return Unregistered
}

// Len returns the number of subscribers for (h, kind).
func (r *Registry) Len(h callbridge.Handle, kind event.Kind) int {
	if s := r.slot(h, kind, false); s != nil {
		return s.list.Len()
	}
	return 0
}

// IsEmpty reports whether h has no subscribers for any kind.
func (r *Registry) IsEmpty(h callbridge.Handle) bool {
	b := r.buckets[h]
	if b == nil {
		return true
	}
	for _, s := range b.slots {
		if s != nil && !s.list.IsEmpty() {
			return false
		}
	}
	return true
}

// Size returns the number of handles with registry entries.
func (r *Registry) Size() int {
	return len(r.buckets)
}

// Handles returns the tracked handles in ascending order.
func (r *Registry) Handles() []callbridge.Handle {
	out := make([]callbridge.Handle, 0, len(r.buckets))
	for h := range r.buckets {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Registered returns every pair whose trampoline is installed, ordered by
// handle then kind.
func (r *Registry) Registered() []Key {
	var out []Key
	for _, h := range r.Handles() {
		for k, s := range r.buckets[h].slots {
			if s != nil && s.state == Registered {
				out = append(out, Key{Handle: h, Kind: event.Kind(k)})
			}
		}
	}
	return out
}

// Remove drops every list for h without calling the native library.
// It is used when the native resource has been destroyed.
func (r *Registry) Remove(h callbridge.Handle) bool {
	b, ok := r.buckets[h]
	if !ok {
		return false
	}
	delete(r.buckets, h)

	for k, s := range b.slots {
		if s == nil {
			continue
		}
		s.list.Clear()
		if s.state == Registered {
			s.state = Unregistered
			r.notify(Transition{Key: Key{h, event.Kind(k)}, From: Registered, To: Unregistered, Purged: true})
		}
	}
	return true
}

// Clear uninstalls every registered trampoline and drops all entries.
// Lists are emptied before the installer runs, and each pair turns
// Unregistered as soon as its own uninstall succeeds, so shared channels
// release on the last pair of their family. Uninstall failures are collected;
// the registry is empty afterwards either way.
func (r *Registry) Clear(ctx context.Context) error {
	keys := r.Registered()
	for _, b := range r.buckets {
		for _, s := range b.slots {
			if s != nil {
				s.list.Clear()
			}
		}
	}

	var errs error
	for _, key := range keys {
		if err := r.installer.Uninstall(ctx, key.Handle, key.Kind); err != nil {
			errs = multierr.Append(errs, errors.Registration(errors.PhaseTeardown, key.Handle, key.Kind, err))
			continue
		}
		r.slot(key.Handle, key.Kind, false).state = Unregistered
		r.notify(Transition{Key: key, From: Registered, To: Unregistered})
	}

	clear(r.buckets)
	return errs
}

func (r *Registry) slot(h callbridge.Handle, kind event.Kind, create bool) *slot {
	if !kind.Valid() {
		return nil
	}
	b := r.buckets[h]
	if b == nil {
		if !create {
			return nil
		}
		b = &bucket{}
		r.buckets[h] = b
	}
	s := b.slots[kind]
	if s == nil && create {
		s = &slot{list: subscriber.New[event.Callback]()}
		b.slots[kind] = s
	}
	return s
}

// prune drops the bucket for h when it holds nothing worth keeping.
func (r *Registry) prune(h callbridge.Handle) {
	b := r.buckets[h]
	if b == nil {
		return
	}
	for _, s := range b.slots {
		if s != nil && (s.state == Registered || !s.list.IsEmpty()) {
			return
		}
	}
	delete(r.buckets, h)
}

func (r *Registry) notify(t Transition) {
	for _, o := range r.observers {
		o.OnTransition(t)
	}
}
