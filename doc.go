// Package callbridge multiplexes managed event subscribers onto native
// libraries that accept at most one callback per event slot per resource.
//
// A windowing/input library lets a host install a single "position changed"
// callback per window; an audio library exposes one global switch that gates
// several notification categories through one callback. Application code
// wants ordinary multi-subscriber semantics on top of that. This module is the
// layer in between.
//
// # Architecture Overview
//
//	callbridge/          Root package with Handle and the Memory/Allocator interfaces
//	├── event/           Event kinds, families and decoded payloads
//	├── subscriber/      Copy-on-write subscriber lists with snapshot dispatch
//	├── registry/        Handle-keyed registry of subscriber lists
//	├── trampoline/      Fixed-ABI trampolines and the process-lifetime table
//	├── channel/         Reference-counted shared channels (audio family)
//	├── marshal/         Native payload decoding and outbound pinning
//	├── native/          Downward interface to the native library
//	│   ├── nativetest/  In-process fake library for tests
//	│   └── wasmlib/     wazero-backed library hosting a wasm32 guest
//	├── bridge/          Facade owning registry, table and library
//	├── errors/          Structured error types
//	├── metrics/         Prometheus observer
//	├── config/          Environment configuration
//	└── cmd/evdemo/      Scripted and interactive demo runner
//
// # Quick Start
//
//	lib, err := wasmlib.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lib.Close(ctx)
//
//	b, err := bridge.New(lib)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close(ctx)
//
//	sub, err := b.OnWindowPos(ctx, window, func(h callbridge.Handle, p event.WindowPos) error {
//	    fmt.Println("moved to", p.X, p.Y)
//	    return nil
//	})
//
// # Thread Safety
//
// The wrapped native libraries must be driven from one designated goroutine.
// Nothing in this module takes locks: Subscribe, Unsubscribe, dispatch and
// teardown all run synchronously on that goroutine. A subscriber may
// subscribe or unsubscribe (itself included) while it is being dispatched;
// dispatch always iterates a snapshot taken when the native event arrived.
package callbridge
