package bridge_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/bridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/native/nativetest"
	"github.com/wippyai/callbridge/registry"
)

func newBridge(t *testing.T, opts ...bridge.Option) (*bridge.Bridge, *nativetest.Library) {
	t.Helper()
	lib := nativetest.New()
	b, err := bridge.New(lib, opts...)
	require.NoError(t, err)
	return b, lib
}

func counter(n *int) event.Callback {
	return func(event.Event) error {
		*n++
		return nil
	}
}

func TestNew_RequiresLibrary(t *testing.T) {
	_, err := bridge.New(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidInput})
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	require.NoError(t, b.Unsubscribe(ctx, bridge.Subscription{}))
	require.NoError(t, b.Unsubscribe(ctx, bridge.Subscription{Handle: 1, Kind: event.KindKey, ID: 424242}))

	var n int
	sub, err := b.Subscribe(ctx, 1, event.KindKey, counter(&n))
	require.NoError(t, err)
	require.NoError(t, b.Unsubscribe(ctx, sub))
	require.NoError(t, b.Unsubscribe(ctx, sub))

	assert.Equal(t, 2, lib.Count(nativetest.OpSetCallback))
}

func TestSubscribe_Multiplicity(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var n int
	cb := counter(&n)
	first, err := b.Subscribe(ctx, 1, event.KindChar, cb)
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, 1, event.KindChar, cb)
	require.NoError(t, err)

	lib.EmitChar(ctx, 1, 'a')
	assert.Equal(t, 2, n)

	require.NoError(t, b.Unsubscribe(ctx, first))
	n = 0
	lib.EmitChar(ctx, 1, 'b')
	assert.Equal(t, 1, n)
}

func TestSubscribe_BoundaryMinimality(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var n int
	subs := make([]bridge.Subscription, 0, 3)
	for i := 0; i < 3; i++ {
		sub, err := b.Subscribe(ctx, 4, event.KindWindowPos, counter(&n))
		require.NoError(t, err)
		subs = append(subs, sub)
	}
	assert.Equal(t, 1, lib.Count(nativetest.OpSetCallback))
	assert.Same(t, b.Table().ForKind(event.KindWindowPos), lib.Slot(4, event.KindWindowPos))
	assert.Equal(t, registry.Registered, b.State(4, event.KindWindowPos))

	require.NoError(t, b.Unsubscribe(ctx, subs[0]))
	require.NoError(t, b.Unsubscribe(ctx, subs[1]))
	assert.Equal(t, 1, lib.Count(nativetest.OpSetCallback))

	require.NoError(t, b.Unsubscribe(ctx, subs[2]))
	assert.Equal(t, 2, lib.Count(nativetest.OpSetCallback))
	assert.Nil(t, lib.Slot(4, event.KindWindowPos))
	assert.Equal(t, registry.Unregistered, b.State(4, event.KindWindowPos))
}

func TestDispatch_HandleIsolation(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var one, two int
	_, err := b.Subscribe(ctx, 1, event.KindWindowSize, counter(&one))
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, 2, event.KindWindowSize, counter(&two))
	require.NoError(t, err)

	lib.EmitWindowSize(ctx, 1, 800, 600)
	assert.Equal(t, 1, one)
	assert.Zero(t, two)
}

func TestDispatch_SnapshotSafeReentrancy(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var calls []string
	var self, other bridge.Subscription
	var err error

	self, err = b.Subscribe(ctx, 1, event.KindWindowFocus, func(event.Event) error {
		calls = append(calls, "self")
		if err := b.Unsubscribe(ctx, self); err != nil {
			return err
		}
		return b.Unsubscribe(ctx, other)
	})
	require.NoError(t, err)
	other, err = b.Subscribe(ctx, 1, event.KindWindowFocus, func(event.Event) error {
		calls = append(calls, "other")
		return nil
	})
	require.NoError(t, err)

	var faults int
	b.OnFault(func(*errors.Error) { faults++ })

	lib.EmitWindowFocus(ctx, 1, true)
	assert.Equal(t, []string{"self", "other"}, calls)
	assert.Zero(t, faults)

	calls = nil
	lib.EmitWindowFocus(ctx, 1, false)
	assert.Empty(t, calls)
	assert.True(t, b.IsEmpty(1))
}

func TestDispatch_FaultsReachFaultChannel(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var got []*errors.Error
	b.OnFault(func(f *errors.Error) { got = append(got, f) })
	b.OnFault(func(*errors.Error) { panic("fault handler") })

	var after int
	_, err := b.Subscribe(ctx, 6, event.KindKey, func(event.Event) error { panic("subscriber") })
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, 6, event.KindKey, counter(&after))
	require.NoError(t, err)

	assert.NotPanics(t, func() { lib.EmitKey(ctx, 6, 32, 57, 1, 0) })

	assert.Equal(t, 1, after)
	require.Len(t, got, 1)
	assert.Equal(t, errors.KindPanic, got[0].Kind)
	assert.Equal(t, callbridge.Handle(6), got[0].Handle)
	assert.Equal(t, event.KindKey, got[0].Event)
}

func TestFault_Remove(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var n int
	id := b.OnFault(func(*errors.Error) { n++ })
	_, err := b.Subscribe(ctx, 1, event.KindChar, func(event.Event) error { return stderrors.New("x") })
	require.NoError(t, err)

	lib.EmitChar(ctx, 1, 'q')
	assert.True(t, b.RemoveFault(id))
	lib.EmitChar(ctx, 1, 'q')

	assert.Equal(t, 1, n)
	assert.Zero(t, b.OnFault(nil))
}

func TestSubscribe_RegistrationFault(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)
	native := stderrors.New("slot refused")
	lib.Fail(nativetest.OpSetCallback, native)

	var n int
	sub, err := b.Subscribe(ctx, 1, event.KindScroll, counter(&n))
	require.Error(t, err)
	assert.ErrorIs(t, err, native)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseSubscribe, Kind: errors.KindRegistration})
	assert.False(t, sub.Valid())
	assert.True(t, b.IsEmpty(1))

	lib.Fail(nativetest.OpSetCallback, nil)
	sub, err = b.Subscribe(ctx, 1, event.KindScroll, counter(&n))
	require.NoError(t, err)

	lib.Fail(nativetest.OpSetCallback, native)
	err = b.Unsubscribe(ctx, sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseUnsubscribe, Kind: errors.KindRegistration})
	assert.Equal(t, registry.Registered, b.State(1, event.KindScroll))
}

func TestWindowClose_Veto(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	assert.True(t, lib.EmitWindowClose(ctx, 3), "closes with no subscribers")

	sub, err := b.OnWindowClose(ctx, 3, func(ev event.Event) error {
		ev.Cancel()
		return nil
	})
	require.NoError(t, err)
	assert.False(t, lib.EmitWindowClose(ctx, 3))
	assert.Equal(t, 1, lib.Count(nativetest.OpCancelDefault))

	require.NoError(t, b.Unsubscribe(ctx, sub))
	_, err = b.OnWindowClose(ctx, 3, func(event.Event) error { return nil })
	require.NoError(t, err)
	assert.True(t, lib.EmitWindowClose(ctx, 3))
	assert.Equal(t, 1, lib.Count(nativetest.OpCancelDefault))
}

func TestClose_TeardownCompleteness(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var n int
	for _, h := range []callbridge.Handle{1, 2} {
		_, err := b.Subscribe(ctx, h, event.KindWindowPos, counter(&n))
		require.NoError(t, err)
		_, err = b.Subscribe(ctx, h, event.KindAudioBufferEnd, counter(&n))
		require.NoError(t, err)
	}
	_, err := b.Subscribe(ctx, callbridge.GlobalHandle, event.KindJoystick, counter(&n))
	require.NoError(t, err)
	pos := b.Table().ForKind(event.KindWindowPos)
	audio := b.Table().ForFamily(event.FamilyAudio)

	require.NoError(t, b.Close(ctx))

	assert.True(t, lib.Terminated())
	assert.Zero(t, lib.Installed())
	last := lib.Calls[len(lib.Calls)-1]
	assert.Equal(t, nativetest.OpTerminate, last.Op, "terminate runs after every uninstall")

	for _, h := range []callbridge.Handle{callbridge.GlobalHandle, 1, 2} {
		assert.True(t, b.IsEmpty(h))
		pos.Call(ctx, lib.Memory(), uint64(h), 0, 0)
		audio.Call(ctx, lib.Memory(), uint64(h), uint64(event.KindAudioBufferEnd), 0)
	}
	assert.Zero(t, n)
	assert.Empty(t, b.Handles())
	assert.Empty(t, b.Registered())
}

func TestClose_UninstallsBeforeTerminate(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	_, err := b.Subscribe(ctx, 1, event.KindChar, func(event.Event) error { return nil })
	require.NoError(t, err)
	lib.Calls = nil

	require.NoError(t, b.Close(ctx))
	require.Len(t, lib.Calls, 2)
	assert.Equal(t, nativetest.OpSetCallback, lib.Calls[0].Op)
	assert.Nil(t, lib.Calls[0].Entry)
	assert.Equal(t, nativetest.OpTerminate, lib.Calls[1].Op)
}

func TestClose_AggregatesFailures(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	_, err := b.Subscribe(ctx, 1, event.KindChar, func(event.Event) error { return nil })
	require.NoError(t, err)
	lib.Fail(nativetest.OpSetCallback, stderrors.New("stuck"))
	lib.Fail(nativetest.OpTerminate, stderrors.New("busy"))

	err = b.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseTeardown, Kind: errors.KindRegistration})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseTeardown, Kind: errors.KindNative})
	assert.True(t, b.Closed())
	assert.True(t, b.IsEmpty(1))
}

func TestClose_ClosedBridgeRejectsCalls(t *testing.T) {
	ctx := context.Background()
	b, _ := newBridge(t)
	require.NoError(t, b.Close(ctx))

	var cerr *errors.Error
	_, err := b.Subscribe(ctx, 1, event.KindChar, func(event.Event) error { return nil })
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, errors.KindNotInitialized, cerr.Kind)

	require.ErrorAs(t, b.Unsubscribe(ctx, bridge.Subscription{ID: 1}), &cerr)
	assert.Equal(t, errors.KindNotInitialized, cerr.Kind)

	require.ErrorAs(t, b.Close(ctx), &cerr)
	assert.Equal(t, errors.KindNotInitialized, cerr.Kind)
}

func TestNewBridgeStartsPristine(t *testing.T) {
	ctx := context.Background()
	first, _ := newBridge(t)
	_, err := first.Subscribe(ctx, 1, event.KindChar, func(event.Event) error { return nil })
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second, lib := newBridge(t)
	assert.Empty(t, second.Handles())
	assert.Zero(t, lib.Installed())
	assert.NotSame(t, first.Table(), second.Table())
}

func TestDestroyHandle(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	var n int
	_, err := b.Subscribe(ctx, 8, event.KindCursorPos, counter(&n))
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, 8, event.KindAudioStateChanged, counter(&n))
	require.NoError(t, err)
	before := len(lib.Calls)

	b.DestroyHandle(8)

	assert.Len(t, lib.Calls, before, "no native calls")
	assert.True(t, b.IsEmpty(8))
	assert.Equal(t, registry.Unregistered, b.State(8, event.KindCursorPos))

	lib.EmitCursorPos(ctx, 8, 1, 1)
	lib.EmitAudio(ctx, 8, int32(event.KindAudioStateChanged), 1)
	assert.Zero(t, n)

	// The handle value may be reused for a new resource.
	_, err = b.Subscribe(ctx, 8, event.KindAudioStateChanged, counter(&n))
	require.NoError(t, err)
	assert.Equal(t, 2, lib.Count(nativetest.OpSetFamilyCallback))
}

func TestGlobalKindsUseGlobalHandle(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)

	sub, err := b.Subscribe(ctx, 77, event.KindJoystick, func(event.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, callbridge.GlobalHandle, sub.Handle)
	assert.NotNil(t, lib.Slot(callbridge.GlobalHandle, event.KindJoystick))
}

func TestFamily_FailedSharedUninstallKeepsDelivery(t *testing.T) {
	ctx := context.Background()
	b, lib := newBridge(t)
	const h callbridge.Handle = 4

	first, err := b.Subscribe(ctx, h, event.KindAudioBufferEnd, func(event.Event) error { return nil })
	require.NoError(t, err)

	busy := stderrors.New("busy")
	lib.Fail(nativetest.OpSetFamilyCallback, busy)
	require.ErrorIs(t, b.Unsubscribe(ctx, first), busy)
	lib.Fail(nativetest.OpSetFamilyCallback, nil)
	require.Equal(t, registry.Registered, b.State(h, event.KindAudioBufferEnd))

	sibling, err := b.Subscribe(ctx, h, event.KindAudioStateChanged, func(event.Event) error { return nil })
	require.NoError(t, err)
	require.NoError(t, b.Unsubscribe(ctx, sibling))
	assert.NotNil(t, lib.FamilySlot(h, event.FamilyAudio), "buffer end still holds the shared slot")

	var buffers []uint32
	_, err = b.OnAudioBufferEnd(ctx, h, func(_ callbridge.Handle, p event.AudioBufferEnd) error {
		buffers = append(buffers, p.Buffer)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, lib.EmitAudio(ctx, h, int32(event.KindAudioBufferEnd), 9))
	assert.Equal(t, []uint32{9}, buffers)
}

func TestSetLogger_DefaultForNewBridges(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	bridge.SetLogger(zap.New(core))
	t.Cleanup(func() { bridge.SetLogger(zap.NewNop()) })

	ctx := context.Background()
	b, _ := newBridge(t)
	_, err := b.Subscribe(ctx, 2, event.KindScroll, func(event.Event) error { return nil })
	require.NoError(t, err)

	entries := logs.FilterMessage("registration").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "registered", entries[0].ContextMap()["to"])
}
