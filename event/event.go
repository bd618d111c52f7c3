package event

import "github.com/wippyai/callbridge"

// Event is one native callback delivered to subscribers.
type Event struct {
	Payload Payload
	veto    *bool
	Handle  callbridge.Handle
	Kind    Kind
}

// Callback is a subscriber. A returned error is reported on the fault
// channel; it never stops delivery to the remaining subscribers.
type Callback func(Event) error

// New creates an event for payload p on handle h.
func New(h callbridge.Handle, p Payload) Event {
	return Event{Handle: h, Kind: p.Kind(), Payload: p}
}

// NewCancellable creates an event whose Cancel writes to veto.
func NewCancellable(h callbridge.Handle, p Payload, veto *bool) Event {
	return Event{Handle: h, Kind: p.Kind(), Payload: p, veto: veto}
}

// Cancel requests that the native default action be reversed.
// It has no effect on kinds that are not cancellable.
func (e Event) Cancel() {
	if e.veto != nil {
		*e.veto = true
	}
}

// Cancellable reports whether Cancel has an effect.
func (e Event) Cancellable() bool {
	return e.veto != nil
}

// Cancelled reports whether any subscriber has called Cancel so far.
func (e Event) Cancelled() bool {
	return e.veto != nil && *e.veto
}
