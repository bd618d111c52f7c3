package channel

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/registry"
	"github.com/wippyai/callbridge/trampoline"
)

// Native is the part of the native library a Channel drives.
type Native interface {
	SetFamilyCallback(ctx context.Context, h callbridge.Handle, family event.Family, entry *trampoline.Entry) (*trampoline.Entry, error)
	EnableKind(ctx context.Context, h callbridge.Handle, kind event.Kind, enabled bool) error
}

// Tracker reports the registration state of a pair.
type Tracker interface {
	State(h callbridge.Handle, kind event.Kind) registry.State
}

// Channel is the refcounted shared callback of one family.
type Channel struct {
	lib       Native
	tracker   Tracker
	entry     *trampoline.Entry
	installed map[callbridge.Handle]struct{}
	logger    *zap.Logger
	family    event.Family
}

// New creates a Channel for family that installs entry through lib.
func New(family event.Family, entry *trampoline.Entry, lib Native, tracker Tracker) *Channel {
	return &Channel{
		family:    family,
		entry:     entry,
		lib:       lib,
		tracker:   tracker,
		installed: make(map[callbridge.Handle]struct{}),
		logger:    Logger(),
	}
}

// Family returns the family served by c.
func (c *Channel) Family() event.Family {
	return c.family
}

// Handles returns the handles that currently hold the shared trampoline.
func (c *Channel) Handles() []callbridge.Handle {
	out := make([]callbridge.Handle, 0, len(c.installed))
	for h := range c.installed {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Installed reports whether the shared trampoline is installed for h.
func (c *Channel) Installed(h callbridge.Handle) bool {
	_, ok := c.installed[h]
	return ok
}

// Install enables kind on h, installing the shared trampoline first if this
// is the first active kind of the family on h.
func (c *Channel) Install(ctx context.Context, h callbridge.Handle, kind event.Kind) error {
	if err := c.check(kind); err != nil {
		return err
	}

	fresh := false
	if !c.Installed(h) {
		if _, err := c.lib.SetFamilyCallback(ctx, h, c.family, c.entry); err != nil {
			return err
		}
		c.installed[h] = struct{}{}
		fresh = true
		c.logger.Debug("shared trampoline installed",
			zap.Uint32("handle", uint32(h)),
			zap.Stringer("family", c.family))
	}

	if err := c.lib.EnableKind(ctx, h, kind, true); err != nil {
		if fresh {
			c.release(ctx, h)
		}
		return err
	}
	return nil
}

// Uninstall disables kind on h and removes the shared trampoline once no
// other kind of the family is registered on h. A kind whose own uninstall
// failed stays registered and keeps the trampoline alive.
func (c *Channel) Uninstall(ctx context.Context, h callbridge.Handle, kind event.Kind) error {
	if err := c.check(kind); err != nil {
		return err
	}

	if err := c.lib.EnableKind(ctx, h, kind, false); err != nil {
		return err
	}
	if !c.Installed(h) || c.registered(h, kind) > 0 {
		return nil
	}

	if _, err := c.lib.SetFamilyCallback(ctx, h, c.family, nil); err != nil {
		// Keep the flag consistent with the pair staying registered.
		if rerr := c.lib.EnableKind(ctx, h, kind, true); rerr != nil {
			c.logger.Warn("failed to restore kind flag",
				zap.Uint32("handle", uint32(h)),
				zap.Stringer("kind", kind),
				zap.Error(rerr))
		}
		return err
	}
	delete(c.installed, h)
	c.logger.Debug("shared trampoline removed",
		zap.Uint32("handle", uint32(h)),
		zap.Stringer("family", c.family))
	return nil
}

// Active returns the number of registered kinds of the family on h.
func (c *Channel) Active(h callbridge.Handle) int {
	return c.registered(h, event.KindUnrecognized)
}

// registered counts registered kinds of the family on h, except skip.
func (c *Channel) registered(h callbridge.Handle, skip event.Kind) int {
	n := 0
	for _, k := range c.family.Kinds() {
		if k != skip && c.tracker.State(h, k) == registry.Registered {
			n++
		}
	}
	return n
}

// Remove forgets h without native calls. Use it when the native resource
// has already been destroyed.
func (c *Channel) Remove(h callbridge.Handle) {
	delete(c.installed, h)
}

// Reset forgets every handle without native calls.
func (c *Channel) Reset() {
	clear(c.installed)
}

func (c *Channel) release(ctx context.Context, h callbridge.Handle) {
	if _, err := c.lib.SetFamilyCallback(ctx, h, c.family, nil); err != nil {
		c.logger.Warn("failed to roll back shared trampoline",
			zap.Uint32("handle", uint32(h)),
			zap.Stringer("family", c.family),
			zap.Error(err))
		return
	}
	delete(c.installed, h)
}

func (c *Channel) check(kind event.Kind) error {
	if kind.Family() != c.family {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Event(kind).
			Detail("kind %s is not in family %s", kind, c.family).
			Build()
	}
	return nil
}
