package bridge

import (
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/registry"
	"github.com/wippyai/callbridge/trampoline"
)

// Observer receives dispatch and registration statistics.
type Observer interface {
	trampoline.Observer
	registry.Observer
}

// FaultHandler receives faults captured at the trampoline boundary.
type FaultHandler func(*errors.Error)

type observers []Observer

func (o observers) OnDispatch(kind event.Kind, n int) {
	for _, ob := range o {
		ob.OnDispatch(kind, n)
	}
}

func (o observers) OnFault(f *errors.Error) {
	for _, ob := range o {
		ob.OnFault(f)
	}
}

func (o observers) OnTransition(t registry.Transition) {
	for _, ob := range o {
		ob.OnTransition(t)
	}
}
