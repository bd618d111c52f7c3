package bridge

import (
	"context"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
)

// on subscribes fn with the payload already asserted to P.
func on[P event.Payload](ctx context.Context, b *Bridge, h callbridge.Handle, kind event.Kind, fn func(callbridge.Handle, P) error) (Subscription, error) {
	if fn == nil {
		return Subscription{}, errors.InvalidInput(errors.PhaseSubscribe, "nil callback")
	}
	return b.Subscribe(ctx, h, kind, func(ev event.Event) error {
		p, ok := ev.Payload.(P)
		if !ok {
			return errors.New(errors.PhaseDispatch, errors.KindInvalidData).
				Handle(ev.Handle).
				Event(kind).
				Detail("unexpected payload %T", ev.Payload).
				Build()
		}
		return fn(ev.Handle, p)
	})
}

// OnWindowPos subscribes to window moves.
func (b *Bridge) OnWindowPos(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.WindowPos) error) (Subscription, error) {
	return on(ctx, b, h, event.KindWindowPos, fn)
}

// OnWindowSize subscribes to window resizes.
func (b *Bridge) OnWindowSize(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.WindowSize) error) (Subscription, error) {
	return on(ctx, b, h, event.KindWindowSize, fn)
}

// OnWindowClose subscribes to close requests. Call ev.Cancel to keep the
// window open.
func (b *Bridge) OnWindowClose(ctx context.Context, h callbridge.Handle, fn event.Callback) (Subscription, error) {
	return b.Subscribe(ctx, h, event.KindWindowClose, fn)
}

// OnWindowFocus subscribes to focus changes.
func (b *Bridge) OnWindowFocus(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.WindowFocus) error) (Subscription, error) {
	return on(ctx, b, h, event.KindWindowFocus, fn)
}

// OnKey subscribes to key events.
func (b *Bridge) OnKey(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.Key) error) (Subscription, error) {
	return on(ctx, b, h, event.KindKey, fn)
}

// OnChar subscribes to character input.
func (b *Bridge) OnChar(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.Char) error) (Subscription, error) {
	return on(ctx, b, h, event.KindChar, fn)
}

// OnCursorPos subscribes to cursor moves.
func (b *Bridge) OnCursorPos(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.CursorPos) error) (Subscription, error) {
	return on(ctx, b, h, event.KindCursorPos, fn)
}

// OnScroll subscribes to scrolling.
func (b *Bridge) OnScroll(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.Scroll) error) (Subscription, error) {
	return on(ctx, b, h, event.KindScroll, fn)
}

// OnDrop subscribes to dropped paths.
func (b *Bridge) OnDrop(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.Drop) error) (Subscription, error) {
	return on(ctx, b, h, event.KindDrop, fn)
}

// OnJoystick subscribes to joystick connection changes.
func (b *Bridge) OnJoystick(ctx context.Context, fn func(event.Joystick) error) (Subscription, error) {
	if fn == nil {
		return Subscription{}, errors.InvalidInput(errors.PhaseSubscribe, "nil callback")
	}
	return on(ctx, b, callbridge.GlobalHandle, event.KindJoystick, func(_ callbridge.Handle, p event.Joystick) error {
		return fn(p)
	})
}

// OnError subscribes to errors reported by the native library.
func (b *Bridge) OnError(ctx context.Context, fn func(event.Error) error) (Subscription, error) {
	if fn == nil {
		return Subscription{}, errors.InvalidInput(errors.PhaseSubscribe, "nil callback")
	}
	return on(ctx, b, callbridge.GlobalHandle, event.KindError, func(_ callbridge.Handle, p event.Error) error {
		return fn(p)
	})
}

// OnAudioBufferEnd subscribes to buffer completion on an audio stream.
func (b *Bridge) OnAudioBufferEnd(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.AudioBufferEnd) error) (Subscription, error) {
	return on(ctx, b, h, event.KindAudioBufferEnd, fn)
}

// OnAudioStateChanged subscribes to playback state changes.
func (b *Bridge) OnAudioStateChanged(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.AudioStateChanged) error) (Subscription, error) {
	return on(ctx, b, h, event.KindAudioStateChanged, fn)
}

// OnAudioDisconnected subscribes to device loss on an audio stream.
func (b *Bridge) OnAudioDisconnected(ctx context.Context, h callbridge.Handle, fn func(callbridge.Handle, event.AudioDisconnected) error) (Subscription, error) {
	return on(ctx, b, h, event.KindAudioDisconnected, fn)
}
