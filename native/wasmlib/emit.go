package wasmlib

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/trampoline"
)

// The Emit methods drive the guest's emit_ exports, playing the part of the
// platform raising events. The guest decides whether a callback is
// installed; the host sees delivery only through its subscribers.

// Emit calls the guest driver of the named trampoline with raw args.
func (l *Library) Emit(ctx context.Context, name string, args ...uint64) error {
	if err := l.ready(EmitExport(name)); err != nil {
		return err
	}
	// A fresh function per call keeps nested emits from sharing call state.
	fn := l.guest.ExportedFunction(EmitExport(name))
	if fn == nil {
		return errors.MissingExport(EmitExport(name))
	}
	if _, err := fn.Call(ctx, args...); err != nil {
		return errors.Wrap(errors.PhaseDispatch, errors.KindNative, err, EmitExport(name))
	}
	return nil
}

func (l *Library) emitKind(ctx context.Context, kind event.Kind, args ...uint64) error {
	return l.Emit(ctx, kind.String(), args...)
}

func u32(v uint32) uint64 {
	return api.EncodeU32(v)
}

func i32(v int32) uint64 {
	return api.EncodeI32(v)
}

func h32(h callbridge.Handle) uint64 {
	return api.EncodeU32(uint32(h))
}

// EmitWindowPos raises a window move.
func (l *Library) EmitWindowPos(ctx context.Context, h callbridge.Handle, x, y int32) error {
	return l.emitKind(ctx, event.KindWindowPos, h32(h), i32(x), i32(y))
}

// EmitWindowSize raises a window resize.
func (l *Library) EmitWindowSize(ctx context.Context, h callbridge.Handle, width, height int32) error {
	return l.emitKind(ctx, event.KindWindowSize, h32(h), i32(width), i32(height))
}

// EmitWindowClose raises a close request and reports whether the window
// should still close after every subscriber ran.
func (l *Library) EmitWindowClose(ctx context.Context, h callbridge.Handle) (bool, error) {
	if err := l.emitKind(ctx, event.KindWindowClose, h32(h)); err != nil {
		return false, err
	}
	return l.ShouldClose(ctx, h)
}

// EmitWindowFocus raises a focus change.
func (l *Library) EmitWindowFocus(ctx context.Context, h callbridge.Handle, focused bool) error {
	var v int32
	if focused {
		v = 1
	}
	return l.emitKind(ctx, event.KindWindowFocus, h32(h), i32(v))
}

// EmitKey raises a key event with raw native codes.
func (l *Library) EmitKey(ctx context.Context, h callbridge.Handle, key, scancode, action, mods int32) error {
	return l.emitKind(ctx, event.KindKey, h32(h), i32(key), i32(scancode), i32(action), i32(mods))
}

// EmitChar raises a character input.
func (l *Library) EmitChar(ctx context.Context, h callbridge.Handle, codepoint int32) error {
	return l.emitKind(ctx, event.KindChar, h32(h), i32(codepoint))
}

// EmitCursorPos raises a cursor move.
func (l *Library) EmitCursorPos(ctx context.Context, h callbridge.Handle, x, y float64) error {
	return l.emitKind(ctx, event.KindCursorPos, h32(h), api.EncodeF64(x), api.EncodeF64(y))
}

// EmitScroll raises a scroll.
func (l *Library) EmitScroll(ctx context.Context, h callbridge.Handle, dx, dy float64) error {
	return l.emitKind(ctx, event.KindScroll, h32(h), api.EncodeF64(dx), api.EncodeF64(dy))
}

// EmitDrop copies paths into guest memory for the duration of the call.
func (l *Library) EmitDrop(ctx context.Context, h callbridge.Handle, paths []string) error {
	p, err := l.adapter.PinStrings(l.mem, l.Allocator(ctx), paths)
	if err != nil {
		return err
	}
	defer p.Release()
	return l.emitKind(ctx, event.KindDrop, h32(h), u32(p.Len), u32(p.Ptr))
}

// EmitJoystick raises a joystick connection change with a raw event code.
func (l *Library) EmitJoystick(ctx context.Context, jid, code int32) error {
	return l.emitKind(ctx, event.KindJoystick, i32(jid), i32(code))
}

// EmitError raises a library error. An empty description is passed as a
// null pointer.
func (l *Library) EmitError(ctx context.Context, code int32, description string) error {
	if description == "" {
		return l.emitKind(ctx, event.KindError, i32(code), 0)
	}
	p, err := l.adapter.PinString(l.mem, l.Allocator(ctx), description)
	if err != nil {
		return err
	}
	defer p.Release()
	return l.emitKind(ctx, event.KindError, i32(code), u32(p.Ptr))
}

// EmitFamily raises a family event with a raw category code.
func (l *Library) EmitFamily(ctx context.Context, family event.Family, h callbridge.Handle, category int32, arg uint32) error {
	for _, sig := range l.sigs {
		if family != event.FamilyNone && sig.Family == family && sig.Kind == event.KindUnrecognized {
			return l.Emit(ctx, sig.Name, h32(h), i32(category), u32(arg))
		}
	}
	return errors.InvalidEnum(errors.PhaseDispatch, family, "Family")
}

// EmitAudio raises an audio family event for kind.
func (l *Library) EmitAudio(ctx context.Context, h callbridge.Handle, kind event.Kind, arg uint32) error {
	return l.EmitFamily(ctx, event.FamilyAudio, h, int32(kind), arg)
}

// Signatures returns the trampolines the guest imports.
func (l *Library) Signatures() []trampoline.Signature {
	out := make([]trampoline.Signature, len(l.sigs))
	copy(out, l.sigs)
	return out
}
