package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/bridge"
	"github.com/wippyai/callbridge/config"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/marshal"
	"github.com/wippyai/callbridge/metrics"
	"github.com/wippyai/callbridge/native/wasmlib"
)

// demo couples a wasm-backed bridge with one recording subscriber per kind.
type demo struct {
	lib       *wasmlib.Library
	bridge    *bridge.Bridge
	collector *metrics.Collector
	registry  *prometheus.Registry
	subs      map[event.Kind]bridge.Subscription
	log       []string
	window    callbridge.Handle
	veto      bool
}

func newDemo(ctx context.Context, cfg *config.Config, logger *zap.Logger, window callbridge.Handle) (*demo, error) {
	mopts, err := cfg.MarshalOptions()
	if err != nil {
		return nil, err
	}

	lib, err := wasmlib.New(ctx, cfg.WasmConfig(),
		wasmlib.WithLogger(logger),
		wasmlib.WithAdapter(marshal.New(mopts...)))
	if err != nil {
		return nil, fmt.Errorf("load guest: %w", err)
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithMarshalOptions(mopts...),
	}

	d := &demo{
		lib:    lib,
		subs:   make(map[event.Kind]bridge.Subscription),
		window: window,
	}
	if cfg.Metrics {
		d.collector = metrics.New()
		d.registry = prometheus.NewRegistry()
		if err := d.collector.Register(d.registry); err != nil {
			_ = lib.Close(ctx)
			return nil, err
		}
		opts = append(opts, bridge.WithObserver(d.collector))
	}

	b, err := bridge.New(lib, opts...)
	if err != nil {
		_ = lib.Close(ctx)
		return nil, err
	}
	d.bridge = b
	b.OnFault(func(f *errors.Error) {
		d.record("fault: %v", f)
	})
	return d, nil
}

func (d *demo) record(format string, args ...any) {
	d.log = append(d.log, fmt.Sprintf(format, args...))
}

func (d *demo) handleFor(kind event.Kind) callbridge.Handle {
	if kind.Global() {
		return callbridge.GlobalHandle
	}
	return d.window
}

func (d *demo) callback(ev event.Event) error {
	d.record("%s@%s %+v", ev.Kind, ev.Handle, ev.Payload)
	if ev.Kind == event.KindWindowClose && d.veto {
		ev.Cancel()
		d.record("window_close vetoed")
	}
	return nil
}

// subscribed reports whether the demo holds a subscription for kind.
func (d *demo) subscribed(kind event.Kind) bool {
	_, ok := d.subs[kind]
	return ok
}

// toggle subscribes to kind, or unsubscribes when already subscribed.
func (d *demo) toggle(ctx context.Context, kind event.Kind) error {
	if sub, ok := d.subs[kind]; ok {
		delete(d.subs, kind)
		return d.bridge.Unsubscribe(ctx, sub)
	}
	sub, err := d.bridge.Subscribe(ctx, d.handleFor(kind), kind, d.callback)
	if err != nil {
		return err
	}
	d.subs[kind] = sub
	return nil
}

// subscribeAll subscribes to every kind not yet subscribed.
func (d *demo) subscribeAll(ctx context.Context) error {
	var err error
	for _, kind := range event.Kinds() {
		if d.subscribed(kind) {
			continue
		}
		err = multierr.Append(err, d.toggle(ctx, kind))
	}
	return err
}

// fire drives the guest to emit one sample event of kind.
func (d *demo) fire(ctx context.Context, kind event.Kind) error {
	h := d.window
	switch kind {
	case event.KindWindowPos:
		return d.lib.EmitWindowPos(ctx, h, 120, 80)
	case event.KindWindowSize:
		return d.lib.EmitWindowSize(ctx, h, 1280, 720)
	case event.KindWindowClose:
		closing, err := d.lib.EmitWindowClose(ctx, h)
		if err == nil {
			d.record("should_close=%t", closing)
		}
		return err
	case event.KindWindowFocus:
		return d.lib.EmitWindowFocus(ctx, h, true)
	case event.KindKey:
		return d.lib.EmitKey(ctx, h, 'A', 30, int32(event.ActionPress), int32(event.ModShift))
	case event.KindChar:
		return d.lib.EmitChar(ctx, h, 'é')
	case event.KindCursorPos:
		return d.lib.EmitCursorPos(ctx, h, 10.5, 20.25)
	case event.KindScroll:
		return d.lib.EmitScroll(ctx, h, 0, -1)
	case event.KindDrop:
		return d.lib.EmitDrop(ctx, h, []string{"/tmp/a.txt", "/tmp/b.png"})
	case event.KindJoystick:
		return d.lib.EmitJoystick(ctx, 0, int32(event.NativeConnected))
	case event.KindError:
		return d.lib.EmitError(ctx, int32(event.ErrAPIUnavailable), "no display")
	case event.KindAudioBufferEnd:
		return d.lib.EmitAudio(ctx, h, kind, 7)
	case event.KindAudioStateChanged:
		return d.lib.EmitAudio(ctx, h, kind, uint32(event.AudioPlaying))
	case event.KindAudioDisconnected:
		return d.lib.EmitAudio(ctx, h, kind, 0)
	}
	return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("no sample for kind %d", kind))
}

// metricLines renders the collector counters, sorted.
func (d *demo) metricLines() ([]string, error) {
	if d.registry == nil {
		return nil, nil
	}
	families, err := d.registry.Gather()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			lines = append(lines, counterLine(mf, m))
		}
	}
	sort.Strings(lines)
	return lines, nil
}

func counterLine(mf *dto.MetricFamily, m *dto.Metric) string {
	labels := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels = append(labels, lp.GetName()+"="+lp.GetValue())
	}
	return fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
}

func (d *demo) close(ctx context.Context) error {
	return multierr.Append(d.bridge.Close(ctx), d.lib.Close(ctx))
}
