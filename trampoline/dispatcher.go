package trampoline

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/marshal"
	"github.com/wippyai/callbridge/registry"
	"github.com/wippyai/callbridge/subscriber"
)

// Resolver finds the subscriber list for a (handle, kind) pair.
type Resolver interface {
	Lookup(h callbridge.Handle, kind event.Kind) (*registry.List, bool)
}

// Canceler reverses the native default action of a vetoed event.
type Canceler interface {
	CancelDefault(ctx context.Context, h callbridge.Handle, kind event.Kind) error
}

// FaultSink receives faults captured during dispatch.
type FaultSink func(*errors.Error)

// Observer receives dispatch statistics.
type Observer interface {
	OnDispatch(kind event.Kind, subscribers int)
	OnFault(f *errors.Error)
}

// Config holds the Dispatcher's collaborators. Resolver is required.
type Config struct {
	Resolver Resolver
	Adapter  *marshal.Adapter
	Canceler Canceler
	Faults   FaultSink
	Observer Observer
	Logger   *zap.Logger
}

// Dispatcher delivers decoded native events to subscribers.
type Dispatcher struct {
	resolver Resolver
	adapter  *marshal.Adapter
	canceler Canceler
	faults   FaultSink
	observer Observer
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		resolver: cfg.Resolver,
		adapter:  cfg.Adapter,
		canceler: cfg.Canceler,
		faults:   cfg.Faults,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
	if d.adapter == nil {
		d.adapter = marshal.New()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Adapter returns the payload adapter used by the trampolines.
func (d *Dispatcher) Adapter() *marshal.Adapter {
	return d.adapter
}

// Dispatch delivers p to the current subscribers of (h, p.Kind()).
func (d *Dispatcher) Dispatch(ctx context.Context, h callbridge.Handle, p event.Payload) {
	kind := p.Kind()
	list, ok := d.resolver.Lookup(h, kind)
	if !ok || list.IsEmpty() {
		return
	}

	var veto bool
	ev := event.New(h, p)
	if kind.Cancellable() {
		ev = event.NewCancellable(h, p, &veto)
	}

	var faults []*errors.Error
	invoked := 0
	list.Invoke(func(_ subscriber.ID, cb event.Callback) {
		invoked++
		if f := d.call(h, kind, cb, ev); f != nil {
			faults = append(faults, f)
		}
	})

	if d.observer != nil {
		d.observer.OnDispatch(kind, invoked)
	}

	if veto && d.canceler != nil {
		if err := d.canceler.CancelDefault(ctx, h, kind); err != nil {
			faults = append(faults, errors.New(errors.PhaseDispatch, errors.KindNative).
				Handle(h).
				Event(kind).
				Cause(err).
				Detail("compensating call failed").
				Build())
		}
	}

	for _, f := range faults {
		d.report(f)
	}
}

func (d *Dispatcher) call(h callbridge.Handle, kind event.Kind, cb event.Callback, ev event.Event) (fault *errors.Error) {
	defer func() {
		if r := recover(); r != nil {
			fault = errors.SubscriberPanic(h, kind, r, debug.Stack())
		}
	}()
	if err := cb(ev); err != nil {
		return errors.SubscriberFault(h, kind, err)
	}
	return nil
}

func (d *Dispatcher) report(f *errors.Error) {
	d.logger.Warn("subscriber fault",
		zap.Uint32("handle", uint32(f.Handle)),
		zap.Stringer("kind", f.Event),
		zap.Error(f))

	if d.observer != nil {
		d.observer.OnFault(f)
	}
	if d.faults == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("fault handler panicked",
				zap.Uint32("handle", uint32(f.Handle)),
				zap.Any("panic", r))
		}
	}()
	d.faults(f)
}

// contain stops anything outside subscriber calls from unwinding into the
// native caller.
func (d *Dispatcher) contain(name string) {
	if r := recover(); r != nil {
		d.logger.Error("trampoline panicked",
			zap.String("trampoline", name),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()))
	}
}
