// Package errors provides structured error types for the callbridge module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the native handle and event kind involved,
// which is what the fault channel needs to diagnose a failing subscriber.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRegister, errors.KindNative).
//		Handle(h).
//		Event(event.KindWindowPos).
//		Detail("set_callback returned %d", code).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Registration(errors.PhaseSubscribe, h, kind, cause)
//	err := errors.SubscriberPanic(h, kind, recovered, stack)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
