package bridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/bridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/marshal"
	"github.com/wippyai/callbridge/native/nativetest"
	"github.com/wippyai/callbridge/registry"
)

func TestSugar_TypedPayloads(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)
	const win callbridge.Handle = 2

	var got []any
	record := func(p any) { got = append(got, p) }

	_, err := b.OnWindowPos(ctx, win, func(_ callbridge.Handle, p event.WindowPos) error { record(p); return nil })
	require.NoError(t, err)
	_, err = b.OnWindowSize(ctx, win, func(_ callbridge.Handle, p event.WindowSize) error { record(p); return nil })
	require.NoError(t, err)
	_, err = b.OnWindowFocus(ctx, win, func(_ callbridge.Handle, p event.WindowFocus) error { record(p); return nil })
	require.NoError(t, err)
	_, err = b.OnKey(ctx, win, func(_ callbridge.Handle, p event.Key) error { record(p); return nil })
	require.NoError(t, err)
	_, err = b.OnChar(ctx, win, func(_ callbridge.Handle, p event.Char) error { record(p); return nil })
	require.NoError(t, err)
	_, err = b.OnCursorPos(ctx, win, func(_ callbridge.Handle, p event.CursorPos) error { record(p); return nil })
	require.NoError(t, err)
	_, err = b.OnScroll(ctx, win, func(_ callbridge.Handle, p event.Scroll) error { record(p); return nil })
	require.NoError(t, err)
	_, err = b.OnJoystick(ctx, func(p event.Joystick) error { record(p); return nil })
	require.NoError(t, err)

	lib.EmitWindowPos(ctx, win, 10, 20)
	lib.EmitWindowSize(ctx, win, 640, 480)
	lib.EmitWindowFocus(ctx, win, true)
	lib.EmitKey(ctx, win, 87, 17, 2, 0x0003)
	lib.EmitChar(ctx, win, 'é')
	lib.EmitCursorPos(ctx, win, 0.5, 99.25)
	lib.EmitScroll(ctx, win, 0, -1)
	lib.EmitJoystick(ctx, 3, event.NativeConnected)

	assert.Equal(t, []any{
		event.WindowPos{X: 10, Y: 20},
		event.WindowSize{Width: 640, Height: 480},
		event.WindowFocus{Focused: true},
		event.Key{Key: 87, Scancode: 17, Action: event.ActionRepeat, Mods: event.ModShift | event.ModControl},
		event.Char{Rune: 'é'},
		event.CursorPos{X: 0.5, Y: 99.25},
		event.Scroll{XOffset: 0, YOffset: -1},
		event.Joystick{ID: 3, Connection: event.Connected},
	}, got)
}

func TestSugar_NilCallback(t *testing.T) {
	ctx := context.Background()
	b, _ := newBridge(t)

	_, err := b.OnKey(ctx, 1, nil)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseSubscribe, Kind: errors.KindInvalidInput})
	_, err = b.OnError(ctx, nil)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseSubscribe, Kind: errors.KindInvalidInput})
}

func TestDrop_ArrayRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{"none", []string{}},
		{"one", []string{"/tmp/a"}},
		{"several", []string{"/a", "/b/c.txt", "", "/ünïcode/d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b, lib := newBridge(t)

			var got []string
			calls := 0
			_, err := b.OnDrop(ctx, 1, func(_ callbridge.Handle, p event.Drop) error {
				calls++
				got = p.Paths
				return nil
			})
			require.NoError(t, err)

			delivered, err := lib.EmitDrop(ctx, 1, tt.paths)
			require.NoError(t, err)
			require.True(t, delivered)
			require.Equal(t, 1, calls)
			require.NotNil(t, got)
			assert.Equal(t, tt.paths, got)
		})
	}
}

func TestError_Description(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var got []event.Error
	_, err := b.OnError(ctx, func(p event.Error) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)

	_, err = lib.EmitError(ctx, int32(event.ErrAPIUnavailable), "no driver")
	require.NoError(t, err)
	_, err = lib.EmitError(ctx, int32(event.ErrPlatformError), "")
	require.NoError(t, err)

	ptr, err := lib.Memory().PutCString("\xff\xfe")
	require.NoError(t, err)
	lib.EmitRawError(ctx, int32(event.ErrPlatformError), ptr)
	lib.EmitRawError(ctx, int32(event.ErrPlatformError), 0xFFFFFF)

	require.Len(t, got, 4)
	assert.Equal(t, event.Error{Code: event.ErrAPIUnavailable, Description: "no driver", HasDescription: true}, got[0])
	for _, e := range got[1:] {
		assert.Equal(t, event.ErrPlatformError, e.Code)
		assert.Equal(t, marshal.NoMessage, e.Description)
		assert.False(t, e.HasDescription)
	}
}

func TestTextEncodingOption(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t, bridge.WithTextEncoding(charmap.Windows1252))

	var got event.Error
	_, err := b.OnError(ctx, func(p event.Error) error {
		got = p
		return nil
	})
	require.NoError(t, err)

	ptr, err := lib.Memory().PutCString("caf\xe9")
	require.NoError(t, err)
	lib.EmitRawError(ctx, int32(event.ErrPlatformError), ptr)

	assert.Equal(t, "café", got.Description)
}

func TestAudio_SharedChannelIndependence(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)
	const stream callbridge.Handle = 9

	var ends, states int
	a, err := b.OnAudioBufferEnd(ctx, stream, func(_ callbridge.Handle, p event.AudioBufferEnd) error {
		ends++
		assert.Equal(t, uint32(4), p.Buffer)
		return nil
	})
	require.NoError(t, err)
	s, err := b.OnAudioStateChanged(ctx, stream, func(_ callbridge.Handle, p event.AudioStateChanged) error {
		states++
		assert.Equal(t, event.AudioPaused, p.State)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Count(nativetest.OpSetFamilyCallback))

	require.NoError(t, b.Unsubscribe(ctx, a))
	assert.False(t, lib.EmitAudio(ctx, stream, int32(event.KindAudioBufferEnd), 4))
	assert.True(t, lib.EmitAudio(ctx, stream, int32(event.KindAudioStateChanged), 2))
	assert.Zero(t, ends)
	assert.Equal(t, 1, states)
	assert.Equal(t, 1, lib.Count(nativetest.OpSetFamilyCallback))

	require.NoError(t, b.Unsubscribe(ctx, s))
	assert.Equal(t, 2, lib.Count(nativetest.OpSetFamilyCallback))
	assert.Nil(t, lib.FamilySlot(stream, event.FamilyAudio))
}

func TestAudio_Disconnected(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var reason int32
	_, err := b.OnAudioDisconnected(ctx, 5, func(_ callbridge.Handle, p event.AudioDisconnected) error {
		reason = p.Reason
		return nil
	})
	require.NoError(t, err)

	require.True(t, lib.EmitAudio(ctx, 5, int32(event.KindAudioDisconnected), 7))
	assert.Equal(t, int32(7), reason)
}

type recordingObserver struct {
	dispatches  int
	invoked     int
	faults      int
	transitions []registry.Transition
}

func (o *recordingObserver) OnDispatch(_ event.Kind, n int) {
	o.dispatches++
	o.invoked += n
}

func (o *recordingObserver) OnFault(*errors.Error) { o.faults++ }

func (o *recordingObserver) OnTransition(t registry.Transition) {
	o.transitions = append(o.transitions, t)
}

func TestObserver(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	b, lib := newBridge(t, bridge.WithObserver(obs), bridge.WithObserver(nil))

	sub, err := b.Subscribe(ctx, 1, event.KindChar, func(event.Event) error { return nil })
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, 1, event.KindChar, func(event.Event) error { panic("x") })
	require.NoError(t, err)

	lib.EmitChar(ctx, 1, 'z')
	require.NoError(t, b.Unsubscribe(ctx, sub))
	b.DestroyHandle(1)

	assert.Equal(t, 1, obs.dispatches)
	assert.Equal(t, 2, obs.invoked)
	assert.Equal(t, 1, obs.faults)
	require.Len(t, obs.transitions, 2)
	assert.Equal(t, registry.Registered, obs.transitions[0].To)
	assert.True(t, obs.transitions[1].Purged)
}
