package errors

import (
	"fmt"
	"strings"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/event"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSubscribe   Phase = "subscribe"   // adding a subscriber
	PhaseUnsubscribe Phase = "unsubscribe" // removing a subscriber
	PhaseRegister    Phase = "register"    // native callback installation
	PhaseDispatch    Phase = "dispatch"    // trampoline delivery
	PhaseDecode      Phase = "decode"      // native to Go
	PhaseEncode      Phase = "encode"      // Go to native
	PhaseTeardown    Phase = "teardown"    // subsystem shutdown
	PhaseLoad        Phase = "load"        // native library loading
)

// Kind categorizes the error
type Kind string

const (
	KindNative         Kind = "native"
	KindRegistration   Kind = "registration"
	KindSubscriber     Kind = "subscriber"
	KindPanic          Kind = "panic"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindInvalidText    Kind = "invalid_text"
	KindInvalidEnum    Kind = "invalid_enum"
	KindAllocation     Kind = "allocation"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindMissingExport  Kind = "missing_export"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Stack  []byte
	Handle callbridge.Handle
	Event  event.Kind
	// HasEvent is false for errors that are not tied to one event kind.
	HasEvent bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.HasEvent {
		b.WriteString(" at ")
		b.WriteString(e.Event.String())
		b.WriteByte('@')
		b.WriteString(e.Handle.String())
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Handle sets the native handle
func (b *Builder) Handle(h callbridge.Handle) *Builder {
	b.err.Handle = h
	return b
}

// Event sets the event kind
func (b *Builder) Event(k event.Kind) *Builder {
	b.err.Event = k
	b.err.HasEvent = true
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Registration creates a native registration failure for (h, kind)
func Registration(phase Phase, h callbridge.Handle, kind event.Kind, cause error) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindRegistration,
		Handle:   h,
		Event:    kind,
		HasEvent: true,
		Detail:   "native callback registration failed",
		Cause:    cause,
	}
}

// NativeStatus creates an error for a failure status reported by the native library
func NativeStatus(op string, h callbridge.Handle, status int32) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindNative,
		Handle: h,
		Detail: fmt.Sprintf("%s returned status %d", op, status),
		Value:  status,
	}
}

// SubscriberFault wraps an error returned by a subscriber during dispatch
func SubscriberFault(h callbridge.Handle, kind event.Kind, cause error) *Error {
	return &Error{
		Phase:    PhaseDispatch,
		Kind:     KindSubscriber,
		Handle:   h,
		Event:    kind,
		HasEvent: true,
		Detail:   "subscriber returned error",
		Cause:    cause,
	}
}

// SubscriberPanic records a panic recovered from a subscriber during dispatch
func SubscriberPanic(h callbridge.Handle, kind event.Kind, recovered any, stack []byte) *Error {
	e := &Error{
		Phase:    PhaseDispatch,
		Kind:     KindPanic,
		Handle:   h,
		Event:    kind,
		HasEvent: true,
		Detail:   fmt.Sprintf("subscriber panicked: %v", recovered),
		Value:    recovered,
		Stack:    stack,
	}
	if err, ok := recovered.(error); ok {
		e.Cause = err
	}
	return e
}

// InvalidText creates an undecodable text error
func InvalidText(phase Phase, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidText,
		Detail: fmt.Sprintf("undecodable text sequence: %x", preview),
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at offset %d", length, offset),
		Value:  offset,
		Cause:  cause,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// InvalidEnum creates an invalid enum code error
func InvalidEnum(phase Phase, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Detail: fmt.Sprintf("invalid %s code %v", enumType, value),
		Value:  value,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// MissingExport creates an error for a native export the library needs but lacks
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingExport,
		Detail: fmt.Sprintf("native export %q not found", name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
