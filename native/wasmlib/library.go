package wasmlib

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/marshal"
	"github.com/wippyai/callbridge/trampoline"
)

// Config holds configuration for the guest runtime.
type Config struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages. 0 leaves wazero's
	// default. The guest needs at least 2.
	MemoryLimitPages uint32
}

// Library is a native.Library backed by a synthesized wasm guest.
//
// Host functions exported to the guest are the trampolines themselves: when
// the guest calls one, the installed Entry's Fn runs with the guest's linear
// memory and raw stack.
type Library struct {
	runtime wazero.Runtime
	guest   api.Module
	mem     *Memory
	adapter *marshal.Adapter
	logger  *zap.Logger

	setCallback       api.Function
	setFamilyCallback api.Function
	enableKind        api.Function
	setShouldClose    api.Function
	shouldClose       api.Function
	terminate         api.Function
	alloc             api.Function
	free              api.Function

	// bound holds the entries the guest can reach, by trampoline name and ID.
	bound map[string]*trampoline.Entry
	byID  map[uint32]*trampoline.Entry

	sigs       []trampoline.Signature
	terminated bool
}

// Option configures a Library.
type Option func(*Library)

// WithAdapter sets the adapter used to marshal emitted payloads.
func WithAdapter(a *marshal.Adapter) Option {
	return func(l *Library) {
		l.adapter = a
	}
}

// WithLogger sets the library's logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Library) {
		l.logger = log
	}
}

// New starts a wazero runtime, registers the host trampolines and
// instantiates the guest.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Library, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		if cfg.MemoryLimitPages < guestPages {
			return nil, errors.InvalidInput(errors.PhaseLoad,
				fmt.Sprintf("memory limit %d pages is below the guest minimum of %d", cfg.MemoryLimitPages, guestPages))
		}
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	l := &Library{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		adapter: marshal.New(),
		logger:  Logger(),
		bound:   make(map[string]*trampoline.Entry),
		byID:    make(map[uint32]*trampoline.Entry),
		sigs:    trampoline.Signatures(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.load(ctx); err != nil {
		_ = l.runtime.Close(ctx)
		return nil, err
	}
	return l, nil
}

func (l *Library) load(ctx context.Context) error {
	host := l.runtime.NewHostModuleBuilder(HostModule)
	for _, sig := range l.sigs {
		name := sig.Name
		host.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				l.invoke(ctx, name, mod, stack)
			}), sig.Params, nil).
			Export(name)
	}
	if _, err := host.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindNative, err, "instantiate host module")
	}

	guest, err := l.runtime.InstantiateWithConfig(ctx, BuildGuest(l.sigs),
		wazero.NewModuleConfig().WithName(GuestModule))
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindNative, err, "instantiate guest")
	}
	l.guest = guest

	mem := guest.Memory()
	if mem == nil {
		return errors.MissingExport(exportMemory)
	}
	l.mem = newMemory(mem)

	exports := map[string]*api.Function{
		exportSetCallback:       &l.setCallback,
		exportSetFamilyCallback: &l.setFamilyCallback,
		exportEnableKind:        &l.enableKind,
		exportSetShouldClose:    &l.setShouldClose,
		exportShouldClose:       &l.shouldClose,
		exportTerminate:         &l.terminate,
		exportAlloc:             &l.alloc,
		exportFree:              &l.free,
	}
	for name, dst := range exports {
		fn := guest.ExportedFunction(name)
		if fn == nil {
			return errors.MissingExport(name)
		}
		*dst = fn
	}
	for _, sig := range l.sigs {
		if guest.ExportedFunction(EmitExport(sig.Name)) == nil {
			return errors.MissingExport(EmitExport(sig.Name))
		}
	}
	return nil
}

// invoke runs the bound entry for a guest call into the host module.
func (l *Library) invoke(ctx context.Context, name string, mod api.Module, stack []uint64) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("host trampoline panicked",
				zap.String("trampoline", name),
				zap.Any("panic", r))
		}
	}()

	entry := l.bound[name]
	if entry == nil {
		l.logger.Debug("guest called unbound trampoline", zap.String("trampoline", name))
		return
	}
	var mem callbridge.Memory = l.mem
	if m := mod.Memory(); m != nil && m != l.mem.guest {
		mem = newMemory(m)
	}
	entry.Fn(ctx, mem, stack)
}

// Memory returns the guest's linear memory.
func (l *Library) Memory() *Memory {
	return l.mem
}

// Allocator returns an allocator over the guest heap bound to ctx.
func (l *Library) Allocator(ctx context.Context) *Allocator {
	return &Allocator{ctx: ctx, alloc: l.alloc, free: l.free}
}

func (l *Library) bind(entry *trampoline.Entry) {
	if entry == nil {
		return
	}
	l.bound[entry.Name] = entry
	l.byID[entry.ID] = entry
}

func (l *Library) ready(op string) error {
	if l.terminated {
		return errors.NotInitialized(errors.PhaseRegister, "native library ("+op+" after terminate)")
	}
	return nil
}

func (l *Library) slot(ctx context.Context, fn api.Function, op string, h callbridge.Handle, index uint32, entry *trampoline.Entry) (*trampoline.Entry, error) {
	if err := l.ready(op); err != nil {
		return nil, err
	}
	var id uint32
	if entry != nil {
		id = entry.ID
	}
	results, err := fn.Call(ctx, uint64(h), uint64(index), uint64(id))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRegister, errors.KindNative, err, op)
	}
	status := api.DecodeI32(results[0])
	if status < 0 {
		return nil, errors.NativeStatus(op, h, status)
	}
	l.bind(entry)
	return l.byID[uint32(status)], nil
}

// SetCallback implements native.Library.
func (l *Library) SetCallback(ctx context.Context, h callbridge.Handle, kind event.Kind, entry *trampoline.Entry) (*trampoline.Entry, error) {
	if !kind.Valid() || kind.Family() != event.FamilyNone {
		return nil, errors.InvalidEnum(errors.PhaseRegister, kind, "Kind")
	}
	return l.slot(ctx, l.setCallback, exportSetCallback, h, uint32(kind), entry)
}

// SetFamilyCallback implements native.Library.
func (l *Library) SetFamilyCallback(ctx context.Context, h callbridge.Handle, family event.Family, entry *trampoline.Entry) (*trampoline.Entry, error) {
	if !family.Valid() {
		return nil, errors.InvalidEnum(errors.PhaseRegister, family, "Family")
	}
	return l.slot(ctx, l.setFamilyCallback, exportSetFamilyCallback, h, uint32(family), entry)
}

// EnableKind implements native.Library.
func (l *Library) EnableKind(ctx context.Context, h callbridge.Handle, kind event.Kind, enabled bool) error {
	if err := l.ready(exportEnableKind); err != nil {
		return err
	}
	if kind.Family() == event.FamilyNone {
		return errors.InvalidEnum(errors.PhaseRegister, kind, "Kind")
	}
	var on uint64
	if enabled {
		on = 1
	}
	results, err := l.enableKind.Call(ctx, uint64(h), uint64(kind), on)
	if err != nil {
		return errors.Wrap(errors.PhaseRegister, errors.KindNative, err, exportEnableKind)
	}
	if status := api.DecodeI32(results[0]); status < 0 {
		return errors.NativeStatus(exportEnableKind, h, status)
	}
	return nil
}

// CancelDefault implements native.Library. Window close is the only kind
// with a reversible default: it clears the should-close flag.
func (l *Library) CancelDefault(ctx context.Context, h callbridge.Handle, kind event.Kind) error {
	if err := l.ready("cancel_default"); err != nil {
		return err
	}
	if kind != event.KindWindowClose {
		return nil
	}
	if _, err := l.setShouldClose.Call(ctx, uint64(h), 0); err != nil {
		return errors.Wrap(errors.PhaseDispatch, errors.KindNative, err, exportSetShouldClose)
	}
	return nil
}

// ShouldClose reports the guest's should-close flag for h.
func (l *Library) ShouldClose(ctx context.Context, h callbridge.Handle) (bool, error) {
	results, err := l.shouldClose.Call(ctx, uint64(h))
	if err != nil {
		return false, errors.Wrap(errors.PhaseDispatch, errors.KindNative, err, exportShouldClose)
	}
	return api.DecodeI32(results[0]) != 0, nil
}

// Terminate implements native.Library. Every slot in the guest is cleared.
func (l *Library) Terminate(ctx context.Context) error {
	if l.terminated {
		return nil
	}
	if _, err := l.terminate.Call(ctx); err != nil {
		return errors.Wrap(errors.PhaseTeardown, errors.KindNative, err, exportTerminate)
	}
	l.terminated = true
	clear(l.bound)
	clear(l.byID)
	return nil
}

// Close releases the wazero runtime.
func (l *Library) Close(ctx context.Context) error {
	return l.runtime.Close(ctx)
}
