// Package channel multiplexes the kinds of one family onto a single shared
// native callback.
//
// The native library holds one callback slot per family and handle, plus an
// enable flag per kind. A Channel installs the family's shared trampoline
// when the first kind of the family gains a subscriber on a handle, toggles
// the per-kind flags as kinds come and go, and removes the shared trampoline
// only when no kind of the family has a subscriber left on that handle.
//
// Channel implements registry.Installer for family kinds. It keeps no
// subscriber counts of its own; the aggregate is read from a Counter (the
// registry) at uninstall time.
package channel
