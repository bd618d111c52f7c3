package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/config"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/registry"
)

func testConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()
	if vars == nil {
		vars = map[string]string{}
	}
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)
	return cfg
}

func TestParseKinds(t *testing.T) {
	all, err := parseKinds("")
	require.NoError(t, err)
	assert.Equal(t, event.Kinds(), all)

	some, err := parseKinds("key, drop")
	require.NoError(t, err)
	assert.Equal(t, []event.Kind{event.KindKey, event.KindDrop}, some)

	_, err = parseKinds("key,nope")
	require.Error(t, err)
}

func TestRun_Scripted(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig(t, map[string]string{"CALLBRIDGE_METRICS": "true", "CALLBRIDGE_LOG_LEVEL": "error"})

	err := run(&out, cfg, 2, []event.Kind{event.KindKey, event.KindDrop, event.KindWindowClose}, true)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Subscribed 14 kinds on window 0x2")
	assert.Contains(t, text, "key@0x2")
	assert.Contains(t, text, "/tmp/a.txt")
	assert.Contains(t, text, "window_close vetoed")
	assert.Contains(t, text, "should_close=false")
	assert.Contains(t, text, `callbridge_dispatches_total{kind=key} 1`)
}

func TestDemo_Toggle(t *testing.T) {
	ctx := context.Background()
	d, err := newDemo(ctx, testConfig(t, nil), zap.NewNop(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.close(ctx) })

	require.NoError(t, d.toggle(ctx, event.KindJoystick))
	assert.True(t, d.subscribed(event.KindJoystick))
	assert.Equal(t, registry.Registered, d.bridge.State(callbridge.GlobalHandle, event.KindJoystick))

	require.NoError(t, d.fire(ctx, event.KindJoystick))
	require.Len(t, d.log, 1)
	assert.Contains(t, d.log[0], "joystick@")

	require.NoError(t, d.toggle(ctx, event.KindJoystick))
	assert.False(t, d.subscribed(event.KindJoystick))
	assert.Equal(t, registry.Unregistered, d.bridge.State(callbridge.GlobalHandle, event.KindJoystick))

	lines, err := d.metricLines()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestDemo_WindowCloseWithoutVeto(t *testing.T) {
	ctx := context.Background()
	d, err := newDemo(ctx, testConfig(t, nil), zap.NewNop(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.close(ctx) })

	require.NoError(t, d.toggle(ctx, event.KindWindowClose))
	require.NoError(t, d.fire(ctx, event.KindWindowClose))
	assert.Contains(t, d.log, "should_close=true")
}

func TestDemo_SharedTextEncoding(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, map[string]string{"CALLBRIDGE_TEXT_ENCODING": "windows-1252"})
	d, err := newDemo(ctx, cfg, zap.NewNop(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.close(ctx) })

	require.NoError(t, d.toggle(ctx, event.KindDrop))
	require.NoError(t, d.lib.EmitDrop(ctx, 1, []string{"café.txt"}))
	require.Len(t, d.log, 1)
	assert.Contains(t, d.log[0], "café.txt")
}
