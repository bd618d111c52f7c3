package marshal

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"go.uber.org/multierr"
	"golang.org/x/text/encoding"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
)

// NoMessage is the sentinel returned by Message when the native side supplied
// no usable text.
const NoMessage = ""

const (
	DefaultMaxStringLen   uint32 = 64 << 10
	DefaultMaxStringCount uint32 = 4096

	// MaxStringCount is the largest count whose u32 pointer table size fits
	// in a uint32.
	MaxStringCount uint32 = math.MaxUint32 / 4
)

// Adapter decodes native payloads. The zero value is not usable; call New.
type Adapter struct {
	enc      encoding.Encoding
	maxLen   uint32
	maxCount uint32
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithEncoding decodes and encodes text with enc instead of strict UTF-8.
func WithEncoding(enc encoding.Encoding) Option {
	return func(a *Adapter) {
		a.enc = enc
	}
}

// WithMaxStringLen bounds the scan for a NUL terminator.
func WithMaxStringLen(n uint32) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxLen = n
		}
	}
}

// WithMaxStringCount bounds the element count accepted by Strings. Values
// above MaxStringCount are clamped to it.
func WithMaxStringCount(n uint32) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxCount = min(n, MaxStringCount)
		}
	}
}

// New creates an Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		maxLen:   DefaultMaxStringLen,
		maxCount: DefaultMaxStringCount,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Strings decodes count string pointers stored at ptr. The result always has
// exactly count entries when the pointer array is readable; entries that
// cannot be decoded are empty. For count 0 the result is empty, never nil.
func (a *Adapter) Strings(mem callbridge.Memory, ptr, count uint32) ([]string, error) {
	if count == 0 {
		return []string{}, nil
	}
	if count > a.maxCount {
		return []string{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(count).
			Detail("string count %d exceeds limit %d", count, a.maxCount).
			Build()
	}

	raw, err := mem.Read(ptr, count*4)
	if err != nil {
		return []string{}, errors.OutOfBounds(errors.PhaseDecode, ptr, count*4, err)
	}
	// Copy the pointer table; raw may alias native memory.
	ptrs := make([]uint32, count)
	for i := range ptrs {
		ptrs[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}

	out := make([]string, count)
	var errs error
	for i, p := range ptrs {
		s, err := a.String(mem, p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[i] = s
	}
	return out, errs
}

// String decodes one NUL-terminated buffer at ptr.
func (a *Adapter) String(mem callbridge.Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", errors.New(errors.PhaseDecode, errors.KindInvalidData).Detail("null string pointer").Build()
	}
	raw, err := a.cstring(mem, ptr)
	if err != nil {
		return "", err
	}
	return a.decode(raw)
}

// Message decodes a NUL-terminated buffer only when it is present, readable
// and non-empty. Otherwise it returns NoMessage and false.
func (a *Adapter) Message(mem callbridge.Memory, ptr uint32) (string, bool) {
	if ptr == 0 {
		return NoMessage, false
	}
	raw, err := a.cstring(mem, ptr)
	if err != nil || len(raw) == 0 {
		return NoMessage, false
	}
	s, err := a.decode(raw)
	if err != nil {
		return NoMessage, false
	}
	return s, true
}

// Encode converts s to the adapter's native text encoding.
func (a *Adapter) Encode(s string) ([]byte, error) {
	if a.enc == nil {
		if !utf8.ValidString(s) {
			return nil, errors.InvalidText(errors.PhaseEncode, []byte(s))
		}
		return []byte(s), nil
	}
	out, err := a.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidText, err, "encode text")
	}
	return out, nil
}

func (a *Adapter) decode(raw []byte) (string, error) {
	if a.enc == nil {
		if !utf8.Valid(raw) {
			return "", errors.InvalidText(errors.PhaseDecode, raw)
		}
		return string(raw), nil
	}
	out, err := a.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindInvalidText, err, "decode text")
	}
	return string(out), nil
}

// cstring returns the bytes before the NUL terminator at ptr. The slice may
// alias native memory.
func (a *Adapter) cstring(mem callbridge.Memory, ptr uint32) ([]byte, error) {
	limit := a.maxLen
	if sizer, ok := mem.(callbridge.MemorySizer); ok {
		size := sizer.Size()
		if ptr >= size {
			return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, 1, nil)
		}
		if avail := size - ptr; avail < limit {
			limit = avail
		}
		window, err := mem.Read(ptr, limit)
		if err != nil {
			return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, limit, err)
		}
		if n := bytes.IndexByte(window, 0); n >= 0 {
			return window[:n], nil
		}
		return nil, unterminated(ptr, limit)
	}

	var buf []byte
	for i := uint32(0); i < limit; i++ {
		b, err := mem.ReadU8(ptr + i)
		if err != nil {
			return nil, errors.OutOfBounds(errors.PhaseDecode, ptr+i, 1, err)
		}
		if b == 0 {
			return buf, nil
		}
		buf = append(buf, b)
	}
	return nil, unterminated(ptr, limit)
}

func unterminated(ptr, limit uint32) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Value(ptr).
		Detail("no NUL terminator within %d bytes", limit).
		Build()
}
