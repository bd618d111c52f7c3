// Package trampoline provides the fixed-signature functions the native
// library calls, and the Dispatcher they forward to.
//
// # ABI
//
// Every trampoline has the raw stack form wazero uses for host functions:
//
//	func(ctx context.Context, mem callbridge.Memory, stack []uint64)
//
// Parameter types and order are fixed per kind and described by the Entry's
// Params (api.ValueTypeI32, api.ValueTypeF64, ...). There is one Entry per
// event kind and one shared Entry per family; every resource handle of that
// kind uses the same Entry. The Table is built once and never changes, so an
// Entry handed to the native library stays valid for the table's lifetime.
//
// # Delivery
//
// A trampoline decodes the handle and payload, then the Dispatcher resolves
// the subscriber list for (handle, kind). Unknown handles are ignored.
// Subscribers run against the list snapshot taken at that moment, each under
// recover(): errors and panics become faults that are reported after the loop
// finishes, and delivery continues with the next subscriber. Nothing escapes
// into the native caller.
//
// For cancellable kinds the Dispatcher collects vetoes from Event.Cancel and,
// if any subscriber vetoed, issues one compensating native call.
package trampoline
