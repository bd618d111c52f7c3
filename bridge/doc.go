// Package bridge is the facade applications use to subscribe to native
// events.
//
// A Bridge owns one native.Library together with everything needed to route
// its callbacks: the handle-keyed registry, the immutable trampoline table,
// one refcounted channel per family and the fault channel. Nothing is
// global; two Bridges over two libraries are fully independent, and a new
// Bridge after Close starts from a pristine state.
//
//	b, err := bridge.New(lib, bridge.WithLogger(log))
//	sub, err := b.OnKey(ctx, win, func(h callbridge.Handle, k event.Key) error {
//		...
//	})
//	defer b.Unsubscribe(ctx, sub)
//
// Subscribe installs the handle's trampoline only on the first subscriber of
// a (handle, kind) pair, and Unsubscribe removes it only with the last. A
// native failure at either boundary is returned from that call.
//
// # Threading
//
// A Bridge is not safe for concurrent use. All calls, including native event
// pumping, must happen on the goroutine that owns the native library.
package bridge
