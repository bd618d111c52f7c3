package marshal

import (
	"unicode/utf8"

	"github.com/wippyai/callbridge/event"
)

// DecodeKind maps a native category code to a Kind.
func DecodeKind(code int32) event.Kind {
	if code < 0 || code >= int32(event.KindCount) {
		return event.KindUnrecognized
	}
	return event.Kind(code)
}

// DecodeBool treats any non-zero value as true.
func DecodeBool(v int32) bool {
	return v != 0
}

// DecodeAction maps a native key action code.
func DecodeAction(code int32) event.Action {
	switch code {
	case 0:
		return event.ActionRelease
	case 1:
		return event.ActionPress
	case 2:
		return event.ActionRepeat
	default:
		return event.ActionUnrecognized
	}
}

// DecodeMods keeps only the defined modifier bits.
func DecodeMods(bits int32) event.Mods {
	return event.Mods(uint32(bits)) & event.ModMask
}

// DecodeRune maps a codepoint, yielding utf8.RuneError for values that are
// not valid Unicode scalar values.
func DecodeRune(cp int32) rune {
	r := rune(cp)
	if !utf8.ValidRune(r) {
		return utf8.RuneError
	}
	return r
}

// DecodeConnection maps a native device connection code.
func DecodeConnection(code int32) event.Connection {
	switch code {
	case event.NativeConnected:
		return event.Connected
	case event.NativeDisconnected:
		return event.Disconnected
	default:
		return event.ConnectionUnrecognized
	}
}

// DecodeAudioState maps a native playback state code.
func DecodeAudioState(code int32) event.AudioState {
	switch code {
	case 0:
		return event.AudioStopped
	case 1:
		return event.AudioPlaying
	case 2:
		return event.AudioPaused
	default:
		return event.AudioStateUnrecognized
	}
}

// DecodeErrorCode maps a native error code; unknown codes become
// event.ErrUnrecognized.
func DecodeErrorCode(code int32) event.ErrorCode {
	c := event.ErrorCode(code)
	if !c.Known() {
		return event.ErrUnrecognized
	}
	return c
}
