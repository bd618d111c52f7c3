package trampoline

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/marshal"
)

// Func is the raw ABI form of a trampoline. Parameters arrive on stack in
// the order given by the Entry's Params; results, if any, are written back
// to stack.
type Func func(ctx context.Context, mem callbridge.Memory, stack []uint64)

// Entry describes one fixed-signature trampoline.
type Entry struct {
	Fn      Func
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	ID      uint32
	Kind    event.Kind
	Family  event.Family
}

// Shared reports whether the entry is a family trampoline serving several
// kinds.
func (e *Entry) Shared() bool {
	return e.Family != event.FamilyNone && e.Kind == event.KindUnrecognized
}

// Call invokes the trampoline with args as its parameters.
func (e *Entry) Call(ctx context.Context, mem callbridge.Memory, args ...uint64) {
	n := len(e.Params)
	if len(e.Results) > n {
		n = len(e.Results)
	}
	stack := make([]uint64, n)
	copy(stack, args)
	e.Fn(ctx, mem, stack)
}

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

// decoder turns the raw stack of one trampoline into a handle and payload.
// ok is false when the call carries nothing to dispatch.
type decoder func(a *marshal.Adapter, log *zap.Logger, mem callbridge.Memory, stack []uint64) (h callbridge.Handle, p event.Payload, ok bool)

type signature struct {
	name   string
	params []api.ValueType
	decode decoder
}

func handle(v uint64) callbridge.Handle {
	return callbridge.Handle(api.DecodeU32(v))
}

func i32At(stack []uint64, i int) int32 {
	return api.DecodeI32(stack[i])
}

func u32At(stack []uint64, i int) uint32 {
	return api.DecodeU32(stack[i])
}

var kindSignatures = [event.KindCount]signature{
	event.KindWindowPos: {"window_pos", []api.ValueType{i32, i32, i32},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.WindowPos{X: i32At(s, 1), Y: i32At(s, 2)}, true
		}},
	event.KindWindowSize: {"window_size", []api.ValueType{i32, i32, i32},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.WindowSize{Width: i32At(s, 1), Height: i32At(s, 2)}, true
		}},
	event.KindWindowClose: {"window_close", []api.ValueType{i32},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.WindowClose{}, true
		}},
	event.KindWindowFocus: {"window_focus", []api.ValueType{i32, i32},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.WindowFocus{Focused: marshal.DecodeBool(i32At(s, 1))}, true
		}},
	event.KindKey: {"key", []api.ValueType{i32, i32, i32, i32, i32},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.Key{
				Key:      i32At(s, 1),
				Scancode: i32At(s, 2),
				Action:   marshal.DecodeAction(i32At(s, 3)),
				Mods:     marshal.DecodeMods(i32At(s, 4)),
			}, true
		}},
	event.KindChar: {"char", []api.ValueType{i32, i32},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.Char{Rune: marshal.DecodeRune(i32At(s, 1))}, true
		}},
	event.KindCursorPos: {"cursor_pos", []api.ValueType{i32, f64, f64},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.CursorPos{X: api.DecodeF64(s[1]), Y: api.DecodeF64(s[2])}, true
		}},
	event.KindScroll: {"scroll", []api.ValueType{i32, f64, f64},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return handle(s[0]), event.Scroll{XOffset: api.DecodeF64(s[1]), YOffset: api.DecodeF64(s[2])}, true
		}},
	event.KindDrop: {"drop", []api.ValueType{i32, i32, i32},
		func(a *marshal.Adapter, log *zap.Logger, mem callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			paths := []string{}
			if mem != nil {
				var err error
				paths, err = a.Strings(mem, u32At(s, 2), u32At(s, 1))
				if err != nil {
					log.Debug("drop paths degraded", zap.Uint32("handle", u32At(s, 0)), zap.Error(err))
				}
			}
			return handle(s[0]), event.Drop{Paths: paths}, true
		}},
	event.KindJoystick: {"joystick", []api.ValueType{i32, i32},
		func(_ *marshal.Adapter, _ *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			return callbridge.GlobalHandle, event.Joystick{ID: i32At(s, 0), Connection: marshal.DecodeConnection(i32At(s, 1))}, true
		}},
	event.KindError: {"error", []api.ValueType{i32, i32},
		func(a *marshal.Adapter, log *zap.Logger, mem callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			desc, has := marshal.NoMessage, false
			if mem != nil {
				desc, has = a.Message(mem, u32At(s, 1))
			}
			if !has && u32At(s, 1) != 0 {
				log.Debug("error description degraded", zap.Uint32("ptr", u32At(s, 1)))
			}
			return callbridge.GlobalHandle, event.Error{
				Code:           marshal.DecodeErrorCode(i32At(s, 0)),
				Description:    desc,
				HasDescription: has,
			}, true
		}},
}

var familySignatures = map[event.Family]signature{
	event.FamilyAudio: {"audio_event", []api.ValueType{i32, i32, i32},
		func(_ *marshal.Adapter, log *zap.Logger, _ callbridge.Memory, s []uint64) (callbridge.Handle, event.Payload, bool) {
			h := handle(s[0])
			kind := marshal.DecodeKind(i32At(s, 1))
			arg := s[2]
			switch kind {
			case event.KindAudioBufferEnd:
				return h, event.AudioBufferEnd{Buffer: api.DecodeU32(arg)}, true
			case event.KindAudioStateChanged:
				return h, event.AudioStateChanged{State: marshal.DecodeAudioState(api.DecodeI32(arg))}, true
			case event.KindAudioDisconnected:
				return h, event.AudioDisconnected{Reason: api.DecodeI32(arg)}, true
			}
			log.Debug("dropping unrecognized audio category",
				zap.Uint32("handle", uint32(h)),
				zap.Int32("category", i32At(s, 1)))
			return h, nil, false
		}},
}

// Signature is the static ABI of one trampoline. It is known before any
// Table exists, so a native library can prepare its import slots up front.
type Signature struct {
	Name   string
	Params []api.ValueType
	ID     uint32
	Kind   event.Kind
	Family event.Family
}

type slotDef struct {
	sig signature
	Signature
}

// layout orders every trampoline: plain kinds in code order, then one
// shared entry per family. IDs start at 1.
func layout() []slotDef {
	var defs []slotDef
	next := func(sig signature, kind event.Kind, family event.Family) {
		defs = append(defs, slotDef{
			sig: sig,
			Signature: Signature{
				ID:     uint32(len(defs) + 1),
				Name:   sig.name,
				Params: sig.params,
				Kind:   kind,
				Family: family,
			},
		})
	}
	for _, k := range event.Kinds() {
		if k.Family() == event.FamilyNone {
			next(kindSignatures[k], k, event.FamilyNone)
		}
	}
	for _, f := range event.Families() {
		if sig, ok := familySignatures[f]; ok {
			next(sig, event.KindUnrecognized, f)
		}
	}
	return defs
}

// Signatures returns the ABI of every trampoline in ID order.
func Signatures() []Signature {
	defs := layout()
	out := make([]Signature, len(defs))
	for i, d := range defs {
		out[i] = d.Signature
	}
	return out
}

// Table is the immutable set of trampolines. It is built once and shared by
// every handle.
type Table struct {
	byKind   [event.KindCount]*Entry
	byFamily map[event.Family]*Entry
	entries  []*Entry
}

// NewTable builds the trampoline table routing to d.
func NewTable(d *Dispatcher) *Table {
	t := &Table{byFamily: make(map[event.Family]*Entry)}
	for _, def := range layout() {
		e := &Entry{
			ID:     def.ID,
			Name:   def.Name,
			Params: def.Params,
			Kind:   def.Kind,
			Family: def.Family,
			Fn:     bind(d, def.sig),
		}
		t.entries = append(t.entries, e)
		if def.Family == event.FamilyNone {
			t.byKind[def.Kind] = e
			continue
		}
		t.byFamily[def.Family] = e
		for _, k := range def.Family.Kinds() {
			t.byKind[k] = e
		}
	}
	return t
}

func bind(d *Dispatcher, sig signature) Func {
	return func(ctx context.Context, mem callbridge.Memory, stack []uint64) {
		defer d.contain(sig.name)
		if len(stack) < len(sig.params) {
			d.logger.Error("short trampoline stack",
				zap.String("trampoline", sig.name),
				zap.Int("want", len(sig.params)),
				zap.Int("got", len(stack)))
			return
		}
		h, p, ok := sig.decode(d.adapter, d.logger, mem, stack)
		if !ok {
			return
		}
		d.Dispatch(ctx, h, p)
	}
}

// ForKind returns the entry the native library must hold for kind. Family
// kinds share their family's entry. It returns nil for invalid kinds.
func (t *Table) ForKind(k event.Kind) *Entry {
	if !k.Valid() {
		return nil
	}
	return t.byKind[k]
}

// ForFamily returns the shared entry of f, or nil.
func (t *Table) ForFamily(f event.Family) *Entry {
	return t.byFamily[f]
}

// ByID returns the entry with the given ID, or nil.
func (t *Table) ByID(id uint32) *Entry {
	if id == 0 || int(id) > len(t.entries) {
		return nil
	}
	return t.entries[id-1]
}

// Entries returns every entry in ID order.
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
