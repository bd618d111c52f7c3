// Package event defines the closed set of native event kinds the bridge
// delivers, the families that share one native enable switch, and the
// decoded payload types subscribers receive.
//
// Each Kind has a fixed native code (its numeric value), a fixed payload
// shape and a scope: handle-scoped kinds are keyed by the resource handle the
// native library passes, global kinds are keyed by callbridge.GlobalHandle.
//
// Cancellable kinds (WindowClose) carry a veto flag. A subscriber calls
// Event.Cancel to request that the native default action be reversed; the
// trampoline collects the outcome once every subscriber has run.
package event
