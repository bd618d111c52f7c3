package event

import "strconv"

// Payload is the decoded form of a native callback's arguments.
type Payload interface {
	Kind() Kind
}

type WindowPos struct {
	X, Y int32
}

type WindowSize struct {
	Width, Height int32
}

// WindowClose carries no data; see Event.Cancel.
type WindowClose struct{}

type WindowFocus struct {
	Focused bool
}

type Key struct {
	Key      int32
	Scancode int32
	Action   Action
	Mods     Mods
}

type Char struct {
	Rune rune
}

type CursorPos struct {
	X, Y float64
}

type Scroll struct {
	XOffset, YOffset float64
}

// Drop lists dropped paths in native order. Paths is never nil.
type Drop struct {
	Paths []string
}

type Joystick struct {
	ID         int32
	Connection Connection
}

// Error is a native error report. HasDescription is false when the native
// library supplied no message.
type Error struct {
	Code           ErrorCode
	Description    string
	HasDescription bool
}

type AudioBufferEnd struct {
	Buffer uint32
}

type AudioStateChanged struct {
	State AudioState
}

type AudioDisconnected struct {
	Reason int32
}

func (WindowPos) Kind() Kind         { return KindWindowPos }
func (WindowSize) Kind() Kind        { return KindWindowSize }
func (WindowClose) Kind() Kind       { return KindWindowClose }
func (WindowFocus) Kind() Kind       { return KindWindowFocus }
func (Key) Kind() Kind               { return KindKey }
func (Char) Kind() Kind              { return KindChar }
func (CursorPos) Kind() Kind         { return KindCursorPos }
func (Scroll) Kind() Kind            { return KindScroll }
func (Drop) Kind() Kind              { return KindDrop }
func (Joystick) Kind() Kind          { return KindJoystick }
func (Error) Kind() Kind             { return KindError }
func (AudioBufferEnd) Kind() Kind    { return KindAudioBufferEnd }
func (AudioStateChanged) Kind() Kind { return KindAudioStateChanged }
func (AudioDisconnected) Kind() Kind { return KindAudioDisconnected }

// Action is a key or button transition.
type Action uint8

const (
	ActionRelease Action = iota
	ActionPress
	ActionRepeat

	ActionUnrecognized Action = 0xFF
)

func (a Action) String() string {
	switch a {
	case ActionRelease:
		return "release"
	case ActionPress:
		return "press"
	case ActionRepeat:
		return "repeat"
	default:
		return "unrecognized"
	}
}

// Mods is the modifier key bit set.
type Mods uint16

const (
	ModShift Mods = 1 << iota
	ModControl
	ModAlt
	ModSuper
	ModCapsLock
	ModNumLock

	// ModMask covers every defined modifier bit.
	ModMask = ModShift | ModControl | ModAlt | ModSuper | ModCapsLock | ModNumLock
)

// Has reports whether every bit of m2 is set in m.
func (m Mods) Has(m2 Mods) bool {
	return m&m2 == m2
}

// Connection is a device connection transition.
type Connection uint8

const (
	ConnectionUnrecognized Connection = iota
	Connected
	Disconnected
)

// Native connection codes.
const (
	NativeConnected    int32 = 0x00040001
	NativeDisconnected int32 = 0x00040002
)

func (c Connection) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unrecognized"
	}
}

// AudioState is the playback state of an audio device.
type AudioState uint8

const (
	AudioStopped AudioState = iota
	AudioPlaying
	AudioPaused

	AudioStateUnrecognized AudioState = 0xFF
)

func (s AudioState) String() string {
	switch s {
	case AudioStopped:
		return "stopped"
	case AudioPlaying:
		return "playing"
	case AudioPaused:
		return "paused"
	default:
		return "unrecognized"
	}
}

// ErrorCode is a native error category.
type ErrorCode int32

const (
	ErrUnrecognized       ErrorCode = 0
	ErrNotInitialized     ErrorCode = 0x00010001
	ErrNoCurrentContext   ErrorCode = 0x00010002
	ErrInvalidEnum        ErrorCode = 0x00010003
	ErrInvalidValue       ErrorCode = 0x00010004
	ErrOutOfMemory        ErrorCode = 0x00010005
	ErrAPIUnavailable     ErrorCode = 0x00010006
	ErrVersionUnavailable ErrorCode = 0x00010007
	ErrPlatformError      ErrorCode = 0x00010008
	ErrFormatUnavailable  ErrorCode = 0x00010009
	ErrNoWindowContext    ErrorCode = 0x0001000A
)

var errorCodeNames = map[ErrorCode]string{
	ErrNotInitialized:     "not_initialized",
	ErrNoCurrentContext:   "no_current_context",
	ErrInvalidEnum:        "invalid_enum",
	ErrInvalidValue:       "invalid_value",
	ErrOutOfMemory:        "out_of_memory",
	ErrAPIUnavailable:     "api_unavailable",
	ErrVersionUnavailable: "version_unavailable",
	ErrPlatformError:      "platform_error",
	ErrFormatUnavailable:  "format_unavailable",
	ErrNoWindowContext:    "no_window_context",
}

// Known reports whether c is one of the defined native error codes.
func (c ErrorCode) Known() bool {
	_, ok := errorCodeNames[c]
	return ok
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "unrecognized(0x" + strconv.FormatInt(int64(c), 16) + ")"
}
