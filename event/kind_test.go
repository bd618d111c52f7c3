package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/callbridge"
)

func TestKind_Metadata(t *testing.T) {
	tests := []struct {
		kind        Kind
		name        string
		family      Family
		global      bool
		cancellable bool
	}{
		{KindWindowPos, "window_pos", FamilyNone, false, false},
		{KindWindowClose, "window_close", FamilyNone, false, true},
		{KindDrop, "drop", FamilyNone, false, false},
		{KindJoystick, "joystick", FamilyNone, true, false},
		{KindError, "error", FamilyNone, true, false},
		{KindAudioBufferEnd, "audio_buffer_end", FamilyAudio, false, false},
		{KindAudioDisconnected, "audio_disconnected", FamilyAudio, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.kind.Valid())
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.family, tt.kind.Family())
			assert.Equal(t, tt.global, tt.kind.Global())
			assert.Equal(t, tt.cancellable, tt.kind.Cancellable())
		})
	}
}

func TestKind_Unrecognized(t *testing.T) {
	assert.False(t, KindUnrecognized.Valid())
	assert.False(t, KindCount.Valid())
	assert.Equal(t, "unrecognized", KindUnrecognized.String())
	assert.Equal(t, FamilyNone, KindUnrecognized.Family())
	assert.False(t, KindUnrecognized.Global())
}

func TestKinds_CodeOrder(t *testing.T) {
	all := Kinds()
	require.Len(t, all, int(KindCount))
	for i, k := range all {
		assert.Equal(t, Kind(i), k)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, ok := ParseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}

	_, ok := ParseKind("resize")
	assert.False(t, ok)
}

func TestFamily_Kinds(t *testing.T) {
	assert.Equal(t, []Kind{KindAudioBufferEnd, KindAudioStateChanged, KindAudioDisconnected}, FamilyAudio.Kinds())
	assert.Nil(t, FamilyNone.Kinds())
	assert.Equal(t, "audio", FamilyAudio.String())
	assert.Equal(t, []Family{FamilyAudio}, Families())
}

func TestPayload_KindMatchesType(t *testing.T) {
	payloads := []Payload{
		WindowPos{}, WindowSize{}, WindowClose{}, WindowFocus{}, Key{}, Char{},
		CursorPos{}, Scroll{}, Drop{}, Joystick{}, Error{},
		AudioBufferEnd{}, AudioStateChanged{}, AudioDisconnected{},
	}
	require.Len(t, payloads, int(KindCount))
	for i, p := range payloads {
		assert.Equal(t, Kind(i), p.Kind())
	}
}

func TestEvent_Cancel(t *testing.T) {
	var veto bool
	e := NewCancellable(callbridge.Handle(5), WindowClose{}, &veto)
	assert.True(t, e.Cancellable())
	assert.False(t, e.Cancelled())

	e.Cancel()
	assert.True(t, veto)
	assert.True(t, e.Cancelled())

	plain := New(5, WindowPos{X: 1, Y: 2})
	assert.False(t, plain.Cancellable())
	plain.Cancel()
	assert.False(t, plain.Cancelled())
	assert.Equal(t, KindWindowPos, plain.Kind)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "press", ActionPress.String())
	assert.Equal(t, "unrecognized", ActionUnrecognized.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "paused", AudioPaused.String())
	assert.Equal(t, "platform_error", ErrPlatformError.String())
	assert.True(t, ErrOutOfMemory.Known())
	assert.False(t, ErrorCode(42).Known())
	assert.Equal(t, "unrecognized(0x2a)", ErrorCode(42).String())
	assert.True(t, (ModShift | ModAlt).Has(ModAlt))
	assert.False(t, ModShift.Has(ModControl))
}
