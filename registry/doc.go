// Package registry owns one subscriber list per (native handle, event kind)
// and tracks whether the native library currently holds the trampoline for
// that pair.
//
// # Registration State
//
// Each pair moves between two states:
//
//	Unregistered -> Registered    first Subscribe, Installer.Install is called
//	Registered   -> Unregistered  last Unsubscribe, Installer.Uninstall is called
//
// Adds and removes that do not cross the empty/non-empty boundary never reach
// the Installer. A failed Install rolls the new entry back and the error is
// returned from Subscribe; a failed Uninstall leaves the pair Registered and
// the error is returned from Unsubscribe.
//
// # Lifecycle
//
//	reg := registry.New(installer)
//
//	id, err := reg.Subscribe(ctx, h, event.KindWindowPos, cb)
//	removed, err := reg.Unsubscribe(ctx, h, event.KindWindowPos, id)
//
//	reg.Remove(h)      // handle destroyed; no native calls
//	err = reg.Clear(ctx) // teardown; uninstalls everything first
//
// The registry is not synchronized. It belongs to the goroutine that drives
// the native library.
package registry
