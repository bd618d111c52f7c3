package bridge

import (
	"context"
	"runtime/debug"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/channel"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/marshal"
	"github.com/wippyai/callbridge/native"
	"github.com/wippyai/callbridge/registry"
	"github.com/wippyai/callbridge/subscriber"
	"github.com/wippyai/callbridge/trampoline"
)

// Subscription identifies one subscriber. The zero value refers to nothing
// and can be unsubscribed safely.
type Subscription struct {
	Handle callbridge.Handle
	ID     subscriber.ID
	Kind   event.Kind
}

// Valid reports whether s was returned by a successful Subscribe.
func (s Subscription) Valid() bool {
	return s.ID != 0
}

// Bridge routes native callbacks to subscribers.
type Bridge struct {
	lib        native.Library
	registry   *registry.Registry
	dispatcher *trampoline.Dispatcher
	table      *trampoline.Table
	channels   map[event.Family]*channel.Channel
	faults     *subscriber.List[FaultHandler]
	observers  observers
	logger     *zap.Logger
	closed     bool
}

// New creates a Bridge over lib.
func New(lib native.Library, opts ...Option) (*Bridge, error) {
	if lib == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil native library")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}

	b := &Bridge{
		lib:       lib,
		channels:  make(map[event.Family]*channel.Channel),
		faults:    subscriber.New[FaultHandler](),
		observers: o.observers,
		logger:    o.logger,
	}
	b.registry = registry.New(installer{b})
	b.registry.AddObserver(registry.ObserverFunc(b.logTransition))
	if len(b.observers) > 0 {
		b.registry.AddObserver(b.observers)
	}

	cfg := trampoline.Config{
		Resolver: b.registry,
		Adapter:  marshal.New(o.marshal...),
		Canceler: lib,
		Faults:   b.deliverFault,
		Logger:   b.logger,
	}
	if len(b.observers) > 0 {
		cfg.Observer = b.observers
	}
	b.dispatcher = trampoline.NewDispatcher(cfg)
	b.table = trampoline.NewTable(b.dispatcher)

	for _, f := range event.Families() {
		if entry := b.table.ForFamily(f); entry != nil {
			b.channels[f] = channel.New(f, entry, lib, b.registry)
		}
	}
	return b, nil
}

// Table returns the trampoline table. It stays valid for the Bridge's
// lifetime.
func (b *Bridge) Table() *trampoline.Table {
	return b.table
}

// Adapter returns the payload adapter.
func (b *Bridge) Adapter() *marshal.Adapter {
	return b.dispatcher.Adapter()
}

// Closed reports whether Close has run.
func (b *Bridge) Closed() bool {
	return b.closed
}

// Subscribe adds cb for (h, kind). Library-wide kinds always use
// callbridge.GlobalHandle regardless of h.
func (b *Bridge) Subscribe(ctx context.Context, h callbridge.Handle, kind event.Kind, cb event.Callback) (Subscription, error) {
	if b.closed {
		return Subscription{}, errors.NotInitialized(errors.PhaseSubscribe, "bridge")
	}
	if kind.Global() {
		h = callbridge.GlobalHandle
	}
	id, err := b.registry.Subscribe(ctx, h, kind, cb)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{Handle: h, Kind: kind, ID: id}, nil
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are a
// no-op.
func (b *Bridge) Unsubscribe(ctx context.Context, sub Subscription) error {
	if b.closed {
		return errors.NotInitialized(errors.PhaseUnsubscribe, "bridge")
	}
	if !sub.Valid() {
		return nil
	}
	_, err := b.registry.Unsubscribe(ctx, sub.Handle, sub.Kind, sub.ID)
	return err
}

// OnFault adds a fault handler and returns its ID.
func (b *Bridge) OnFault(fn FaultHandler) subscriber.ID {
	if fn == nil {
		return 0
	}
	return b.faults.Add(fn)
}

// RemoveFault removes a fault handler.
func (b *Bridge) RemoveFault(id subscriber.ID) bool {
	return b.faults.Remove(id)
}

func (b *Bridge) deliverFault(f *errors.Error) {
	b.faults.Invoke(func(_ subscriber.ID, fn FaultHandler) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("fault handler panicked",
					zap.Uint32("handle", uint32(f.Handle)),
					zap.Stringer("kind", f.Event),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
			}
		}()
		fn(f)
	})
}

// State returns the registration state of (h, kind).
func (b *Bridge) State(h callbridge.Handle, kind event.Kind) registry.State {
	return b.registry.State(h, kind)
}

// Subscribers returns the number of subscribers of (h, kind).
func (b *Bridge) Subscribers(h callbridge.Handle, kind event.Kind) int {
	return b.registry.Len(h, kind)
}

// IsEmpty reports whether h has no subscribers.
func (b *Bridge) IsEmpty(h callbridge.Handle) bool {
	return b.registry.IsEmpty(h)
}

// Handles returns every handle with subscribers, in ascending order.
func (b *Bridge) Handles() []callbridge.Handle {
	return b.registry.Handles()
}

// Registered returns every pair whose trampoline is installed.
func (b *Bridge) Registered() []registry.Key {
	return b.registry.Registered()
}

// DestroyHandle forgets h after its native resource was destroyed. No
// native calls are made; the resource's slots died with it.
func (b *Bridge) DestroyHandle(h callbridge.Handle) {
	if b.closed {
		return
	}
	b.registry.Remove(h)
	for _, ch := range b.channels {
		ch.Remove(h)
	}
}

// Close uninstalls every callback and then terminates the native library.
// All failures are reported together; the Bridge is closed either way.
func (b *Bridge) Close(ctx context.Context) error {
	if b.closed {
		return errors.NotInitialized(errors.PhaseTeardown, "bridge")
	}
	b.closed = true

	errs := b.registry.Clear(ctx)
	for _, ch := range b.channels {
		ch.Reset()
	}

	if err := b.lib.Terminate(ctx); err != nil {
		errs = multierr.Append(errs, errors.Wrap(errors.PhaseTeardown, errors.KindNative, err, "terminate native library"))
	}
	b.faults.Clear()

	if errs != nil {
		b.logger.Warn("bridge teardown incomplete", zap.Error(errs))
	}
	return errs
}

func (b *Bridge) logTransition(t registry.Transition) {
	b.logger.Debug("registration",
		zap.Uint32("handle", uint32(t.Handle)),
		zap.Stringer("kind", t.Kind),
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
		zap.Bool("purged", t.Purged))
}

// installer routes registry boundary crossings to the native library.
type installer struct {
	b *Bridge
}

func (i installer) Install(ctx context.Context, h callbridge.Handle, kind event.Kind) error {
	if ch, ok := i.b.channels[kind.Family()]; ok {
		return ch.Install(ctx, h, kind)
	}
	_, err := i.b.lib.SetCallback(ctx, h, kind, i.b.table.ForKind(kind))
	return err
}

func (i installer) Uninstall(ctx context.Context, h callbridge.Handle, kind event.Kind) error {
	if ch, ok := i.b.channels[kind.Family()]; ok {
		return ch.Uninstall(ctx, h, kind)
	}
	_, err := i.b.lib.SetCallback(ctx, h, kind, nil)
	return err
}
