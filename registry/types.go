package registry

import (
	"context"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/subscriber"
)

// List is the subscriber list kept per (handle, kind).
type List = subscriber.List[event.Callback]

// State is the native registration state of a (handle, kind) pair.
type State uint8

const (
	Unregistered State = iota
	Registered
)

func (s State) String() string {
	if s == Registered {
		return "registered"
	}
	return "unregistered"
}

// Key identifies one subscriber list.
type Key struct {
	Handle callbridge.Handle
	Kind   event.Kind
}

// Installer performs the native (de)registration for a pair.
type Installer interface {
	Install(ctx context.Context, h callbridge.Handle, kind event.Kind) error
	Uninstall(ctx context.Context, h callbridge.Handle, kind event.Kind) error
}

// Transition describes a change of registration state.
type Transition struct {
	Key
	From State
	To   State
	// Purged is set when the change came from Remove rather than a native call.
	Purged bool
}

// Observer receives registration state changes.
type Observer interface {
	OnTransition(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }
