package event

// Kind identifies one category of native callback.
type Kind uint8

const (
	KindWindowPos Kind = iota
	KindWindowSize
	KindWindowClose
	KindWindowFocus
	KindKey
	KindChar
	KindCursorPos
	KindScroll
	KindDrop
	KindJoystick
	KindError
	KindAudioBufferEnd
	KindAudioStateChanged
	KindAudioDisconnected

	// KindCount is the number of recognized kinds.
	KindCount
)

// KindUnrecognized is produced for native codes outside the known table.
const KindUnrecognized Kind = 0xFF

// Family groups kinds that share a single native enable switch.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyAudio

	familyCount
)

type kindInfo struct {
	name        string
	family      Family
	global      bool
	cancellable bool
}

var kinds = [KindCount]kindInfo{
	KindWindowPos:         {name: "window_pos"},
	KindWindowSize:        {name: "window_size"},
	KindWindowClose:       {name: "window_close", cancellable: true},
	KindWindowFocus:       {name: "window_focus"},
	KindKey:               {name: "key"},
	KindChar:              {name: "char"},
	KindCursorPos:         {name: "cursor_pos"},
	KindScroll:            {name: "scroll"},
	KindDrop:              {name: "drop"},
	KindJoystick:          {name: "joystick", global: true},
	KindError:             {name: "error", global: true},
	KindAudioBufferEnd:    {name: "audio_buffer_end", family: FamilyAudio},
	KindAudioStateChanged: {name: "audio_state_changed", family: FamilyAudio},
	KindAudioDisconnected: {name: "audio_disconnected", family: FamilyAudio},
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	return k < KindCount
}

func (k Kind) String() string {
	if !k.Valid() {
		return "unrecognized"
	}
	return kinds[k].name
}

// Family returns the shared-switch family of k, FamilyNone for kinds with
// their own native callback slot.
func (k Kind) Family() Family {
	if !k.Valid() {
		return FamilyNone
	}
	return kinds[k].family
}

// Global reports whether k is keyed by callbridge.GlobalHandle.
func (k Kind) Global() bool {
	return k.Valid() && kinds[k].global
}

// Cancellable reports whether subscribers may veto the native default action.
func (k Kind) Cancellable() bool {
	return k.Valid() && kinds[k].cancellable
}

// Kinds returns every recognized kind in code order.
func Kinds() []Kind {
	out := make([]Kind, 0, KindCount)
	for k := Kind(0); k < KindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind looks a kind up by its name.
func ParseKind(name string) (Kind, bool) {
	for k := Kind(0); k < KindCount; k++ {
		if kinds[k].name == name {
			return k, true
		}
	}
	return KindUnrecognized, false
}

// Valid reports whether f is a recognized family other than FamilyNone.
func (f Family) Valid() bool {
	return f > FamilyNone && f < familyCount
}

func (f Family) String() string {
	switch f {
	case FamilyNone:
		return "none"
	case FamilyAudio:
		return "audio"
	default:
		return "unrecognized"
	}
}

// Kinds returns the categories gated by the family's shared switch.
func (f Family) Kinds() []Kind {
	if !f.Valid() {
		return nil
	}
	var out []Kind
	for k := Kind(0); k < KindCount; k++ {
		if kinds[k].family == f {
			out = append(out, k)
		}
	}
	return out
}

// Families returns every family that has a shared switch.
func Families() []Family {
	return []Family{FamilyAudio}
}
