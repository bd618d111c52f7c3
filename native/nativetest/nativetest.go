// Package nativetest provides an in-process native.Library for tests.
//
// The fake keeps its slot tables in Go maps and its payload memory in a
// linear buffer, records every call made into it, and can be told to fail
// any operation. Emit helpers play the native side: they marshal a payload
// the way the real library does and call whatever entry the slot holds.
package nativetest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/internal/linear"
	"github.com/wippyai/callbridge/marshal"
	"github.com/wippyai/callbridge/registry"
	"github.com/wippyai/callbridge/trampoline"
)

// Op names a library operation.
type Op string

const (
	OpSetCallback       Op = "set_callback"
	OpSetFamilyCallback Op = "set_family_callback"
	OpEnableKind        Op = "enable_kind"
	OpCancelDefault     Op = "cancel_default"
	OpTerminate         Op = "terminate"
)

// Call records one operation made into the library.
type Call struct {
	Entry   *trampoline.Entry
	Op      Op
	Handle  callbridge.Handle
	Kind    event.Kind
	Family  event.Family
	Enabled bool
}

type familyKey struct {
	handle callbridge.Handle
	family event.Family
}

// Library is a fake native library.
type Library struct {
	mem         *linear.Memory
	adapter     *marshal.Adapter
	slots       map[registry.Key]*trampoline.Entry
	shared      map[familyKey]*trampoline.Entry
	flags       map[registry.Key]bool
	shouldClose map[callbridge.Handle]bool
	failures    map[Op]error
	Calls       []Call
	terminated  bool
}

// New creates a fake library with 64 KiB of payload memory.
func New() *Library {
	return &Library{
		mem:         linear.New(64 << 10),
		adapter:     marshal.New(),
		slots:       make(map[registry.Key]*trampoline.Entry),
		shared:      make(map[familyKey]*trampoline.Entry),
		flags:       make(map[registry.Key]bool),
		shouldClose: make(map[callbridge.Handle]bool),
		failures:    make(map[Op]error),
	}
}

// Memory returns the payload memory trampolines read from.
func (l *Library) Memory() *linear.Memory {
	return l.mem
}

// Fail makes every later call of op return err. A nil err clears it.
func (l *Library) Fail(op Op, err error) {
	if err == nil {
		delete(l.failures, op)
		return
	}
	l.failures[op] = err
}

func (l *Library) enter(c Call) error {
	l.Calls = append(l.Calls, c)
	if l.terminated && c.Op != OpTerminate {
		return fmt.Errorf("%s: library terminated", c.Op)
	}
	return l.failures[c.Op]
}

// SetCallback implements native.Library.
func (l *Library) SetCallback(_ context.Context, h callbridge.Handle, kind event.Kind, entry *trampoline.Entry) (*trampoline.Entry, error) {
	if err := l.enter(Call{Op: OpSetCallback, Handle: h, Kind: kind, Entry: entry}); err != nil {
		return nil, err
	}
	key := registry.Key{Handle: h, Kind: kind}
	prev := l.slots[key]
	if entry == nil {
		delete(l.slots, key)
	} else {
		l.slots[key] = entry
	}
	return prev, nil
}

// SetFamilyCallback implements native.Library.
func (l *Library) SetFamilyCallback(_ context.Context, h callbridge.Handle, family event.Family, entry *trampoline.Entry) (*trampoline.Entry, error) {
	if err := l.enter(Call{Op: OpSetFamilyCallback, Handle: h, Family: family, Entry: entry}); err != nil {
		return nil, err
	}
	key := familyKey{h, family}
	prev := l.shared[key]
	if entry == nil {
		delete(l.shared, key)
	} else {
		l.shared[key] = entry
	}
	return prev, nil
}

// EnableKind implements native.Library.
func (l *Library) EnableKind(_ context.Context, h callbridge.Handle, kind event.Kind, enabled bool) error {
	if err := l.enter(Call{Op: OpEnableKind, Handle: h, Kind: kind, Enabled: enabled}); err != nil {
		return err
	}
	l.flags[registry.Key{Handle: h, Kind: kind}] = enabled
	return nil
}

// CancelDefault implements native.Library. For window close it clears the
// handle's should-close flag.
func (l *Library) CancelDefault(_ context.Context, h callbridge.Handle, kind event.Kind) error {
	if err := l.enter(Call{Op: OpCancelDefault, Handle: h, Kind: kind}); err != nil {
		return err
	}
	if kind == event.KindWindowClose {
		l.shouldClose[h] = false
	}
	return nil
}

// Terminate implements native.Library. Every slot is cleared.
func (l *Library) Terminate(context.Context) error {
	if err := l.enter(Call{Op: OpTerminate}); err != nil {
		return err
	}
	l.terminated = true
	clear(l.slots)
	clear(l.shared)
	clear(l.flags)
	return nil
}

// Terminated reports whether Terminate succeeded.
func (l *Library) Terminated() bool {
	return l.terminated
}

// Slot returns the entry installed for (h, kind), or nil.
func (l *Library) Slot(h callbridge.Handle, kind event.Kind) *trampoline.Entry {
	return l.slots[registry.Key{Handle: h, Kind: kind}]
}

// FamilySlot returns the shared entry installed for (h, family), or nil.
func (l *Library) FamilySlot(h callbridge.Handle, family event.Family) *trampoline.Entry {
	return l.shared[familyKey{h, family}]
}

// Enabled reports the enable flag of a family kind on h.
func (l *Library) Enabled(h callbridge.Handle, kind event.Kind) bool {
	return l.flags[registry.Key{Handle: h, Kind: kind}]
}

// Installed returns the number of occupied slots, shared ones included.
func (l *Library) Installed() int {
	return len(l.slots) + len(l.shared)
}

// Count returns how many calls of op were made.
func (l *Library) Count(op Op) int {
	n := 0
	for _, c := range l.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ShouldClose reports the should-close flag of h.
func (l *Library) ShouldClose(h callbridge.Handle) bool {
	return l.shouldClose[h]
}

// Emit calls the entry in the (h, kind) slot with raw args. Global kinds
// always use callbridge.GlobalHandle as the slot. It reports whether a
// callback was installed.
func (l *Library) Emit(ctx context.Context, h callbridge.Handle, kind event.Kind, args ...uint64) bool {
	if kind.Global() {
		h = callbridge.GlobalHandle
	}
	entry := l.slots[registry.Key{Handle: h, Kind: kind}]
	if entry == nil {
		return false
	}
	entry.Call(ctx, l.mem, args...)
	return true
}

func u32(v uint32) uint64 {
	return api.EncodeU32(v)
}

func i32(v int32) uint64 {
	return api.EncodeI32(v)
}

func b32(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// EmitWindowPos fires a window position change.
func (l *Library) EmitWindowPos(ctx context.Context, h callbridge.Handle, x, y int32) bool {
	return l.Emit(ctx, h, event.KindWindowPos, u32(uint32(h)), i32(x), i32(y))
}

// EmitWindowSize fires a window size change.
func (l *Library) EmitWindowSize(ctx context.Context, h callbridge.Handle, width, height int32) bool {
	return l.Emit(ctx, h, event.KindWindowSize, u32(uint32(h)), i32(width), i32(height))
}

// EmitWindowClose sets the should-close flag, fires a close request and
// returns the flag as it stands after delivery.
func (l *Library) EmitWindowClose(ctx context.Context, h callbridge.Handle) bool {
	l.shouldClose[h] = true
	l.Emit(ctx, h, event.KindWindowClose, u32(uint32(h)))
	return l.shouldClose[h]
}

// EmitWindowFocus fires a focus change.
func (l *Library) EmitWindowFocus(ctx context.Context, h callbridge.Handle, focused bool) bool {
	return l.Emit(ctx, h, event.KindWindowFocus, u32(uint32(h)), b32(focused))
}

// EmitKey fires a key event with raw native codes.
func (l *Library) EmitKey(ctx context.Context, h callbridge.Handle, key, scancode, action, mods int32) bool {
	return l.Emit(ctx, h, event.KindKey, u32(uint32(h)), i32(key), i32(scancode), i32(action), i32(mods))
}

// EmitChar fires a character input event.
func (l *Library) EmitChar(ctx context.Context, h callbridge.Handle, codepoint int32) bool {
	return l.Emit(ctx, h, event.KindChar, u32(uint32(h)), i32(codepoint))
}

// EmitCursorPos fires a cursor move.
func (l *Library) EmitCursorPos(ctx context.Context, h callbridge.Handle, x, y float64) bool {
	return l.Emit(ctx, h, event.KindCursorPos, u32(uint32(h)), api.EncodeF64(x), api.EncodeF64(y))
}

// EmitScroll fires a scroll event.
func (l *Library) EmitScroll(ctx context.Context, h callbridge.Handle, dx, dy float64) bool {
	return l.Emit(ctx, h, event.KindScroll, u32(uint32(h)), api.EncodeF64(dx), api.EncodeF64(dy))
}

// EmitDrop pins paths in payload memory for the duration of the call.
func (l *Library) EmitDrop(ctx context.Context, h callbridge.Handle, paths []string) (bool, error) {
	p, err := l.adapter.PinStrings(l.mem, l.mem, paths)
	if err != nil {
		return false, err
	}
	defer p.Release()
	return l.Emit(ctx, h, event.KindDrop, u32(uint32(h)), u32(p.Len), u32(p.Ptr)), nil
}

// EmitJoystick fires a joystick connection change with a raw event code.
func (l *Library) EmitJoystick(ctx context.Context, jid, code int32) bool {
	return l.Emit(ctx, callbridge.GlobalHandle, event.KindJoystick, i32(jid), i32(code))
}

// EmitError fires a library error. An empty description is passed as a
// null pointer.
func (l *Library) EmitError(ctx context.Context, code int32, description string) (bool, error) {
	if description == "" {
		return l.Emit(ctx, callbridge.GlobalHandle, event.KindError, i32(code), 0), nil
	}
	p, err := l.adapter.PinString(l.mem, l.mem, description)
	if err != nil {
		return false, err
	}
	defer p.Release()
	return l.Emit(ctx, callbridge.GlobalHandle, event.KindError, i32(code), u32(p.Ptr)), nil
}

// EmitRawError fires a library error whose description pointer is ptr,
// which need not point at valid text.
func (l *Library) EmitRawError(ctx context.Context, code int32, ptr uint32) bool {
	return l.Emit(ctx, callbridge.GlobalHandle, event.KindError, i32(code), u32(ptr))
}

// EmitAudio fires a family event with a raw category code. Delivery needs
// the shared slot and, for recognized categories, the category's flag.
func (l *Library) EmitAudio(ctx context.Context, h callbridge.Handle, category int32, arg uint32) bool {
	entry := l.shared[familyKey{h, event.FamilyAudio}]
	if entry == nil {
		return false
	}
	if k := marshal.DecodeKind(category); k.Valid() && !l.flags[registry.Key{Handle: h, Kind: k}] {
		return false
	}
	entry.Call(ctx, l.mem, u32(uint32(h)), i32(category), u32(arg))
	return true
}
