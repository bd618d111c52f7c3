// Package native defines the contract of the native event library the
// bridge sits on.
//
// The library offers one callback slot per (handle, kind) for ordinary
// kinds and one shared slot per (handle, family) for family kinds, each
// gated further by a per-kind enable flag. Installing into a slot replaces
// whatever was there; installing nil clears it. The library never calls a
// slot concurrently with the bridge's own operations.
package native

import (
	"context"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/trampoline"
)

// Library is a native event library.
type Library interface {
	// SetCallback installs entry into the (h, kind) slot and returns the
	// previous occupant. A nil entry clears the slot.
	SetCallback(ctx context.Context, h callbridge.Handle, kind event.Kind, entry *trampoline.Entry) (*trampoline.Entry, error)

	// SetFamilyCallback installs the shared entry of family on h.
	SetFamilyCallback(ctx context.Context, h callbridge.Handle, family event.Family, entry *trampoline.Entry) (*trampoline.Entry, error)

	// EnableKind toggles delivery of one family kind on h.
	EnableKind(ctx context.Context, h callbridge.Handle, kind event.Kind, enabled bool) error

	// CancelDefault reverses the default action of a vetoed event.
	CancelDefault(ctx context.Context, h callbridge.Handle, kind event.Kind) error

	// Terminate shuts the library down. Installed slots die with it.
	Terminate(ctx context.Context) error
}
