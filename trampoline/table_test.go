package trampoline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/registry"
)

func TestTable_OneEntryPerKind(t *testing.T) {
	table := NewTable(NewDispatcher(Config{Resolver: registry.New(nopInstaller{})}))

	seen := map[*Entry]bool{}
	for _, k := range event.Kinds() {
		e := table.ForKind(k)
		require.NotNil(t, e, k.String())
		if k.Family() != event.FamilyNone {
			assert.Same(t, table.ForFamily(k.Family()), e)
			continue
		}
		assert.Equal(t, k, e.Kind)
		assert.Equal(t, k.String(), e.Name)
		assert.False(t, seen[e], "entry reused for %s", k)
		seen[e] = true
	}
	assert.Nil(t, table.ForKind(event.KindUnrecognized))
}

func TestTable_SharedFamilyEntry(t *testing.T) {
	table := NewTable(NewDispatcher(Config{Resolver: registry.New(nopInstaller{})}))

	audio := table.ForFamily(event.FamilyAudio)
	require.NotNil(t, audio)
	assert.True(t, audio.Shared())
	assert.Equal(t, "audio_event", audio.Name)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, audio.Params)
	assert.Nil(t, table.ForFamily(event.FamilyNone))
}

func TestTable_IDsAreStable(t *testing.T) {
	table := NewTable(NewDispatcher(Config{Resolver: registry.New(nopInstaller{})}))

	entries := table.Entries()
	require.Len(t, entries, 12)
	for i, e := range entries {
		assert.Equal(t, uint32(i+1), e.ID)
		assert.Same(t, e, table.ByID(e.ID))
	}
	assert.Nil(t, table.ByID(0))
	assert.Nil(t, table.ByID(uint32(len(entries)+1)))
}

func TestTable_Signatures(t *testing.T) {
	table := NewTable(NewDispatcher(Config{Resolver: registry.New(nopInstaller{})}))
	i32, f64 := api.ValueTypeI32, api.ValueTypeF64

	tests := []struct {
		kind   event.Kind
		params []api.ValueType
	}{
		{event.KindWindowPos, []api.ValueType{i32, i32, i32}},
		{event.KindWindowClose, []api.ValueType{i32}},
		{event.KindKey, []api.ValueType{i32, i32, i32, i32, i32}},
		{event.KindCursorPos, []api.ValueType{i32, f64, f64}},
		{event.KindScroll, []api.ValueType{i32, f64, f64}},
		{event.KindDrop, []api.ValueType{i32, i32, i32}},
		{event.KindJoystick, []api.ValueType{i32, i32}},
		{event.KindError, []api.ValueType{i32, i32}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			e := table.ForKind(tt.kind)
			assert.Equal(t, tt.params, e.Params)
			assert.Empty(t, e.Results)
		})
	}
}

func TestSignatures_MatchTable(t *testing.T) {
	table := NewTable(NewDispatcher(Config{Resolver: registry.New(nopInstaller{})}))

	sigs := Signatures()
	entries := table.Entries()
	require.Len(t, sigs, len(entries))
	for i, sig := range sigs {
		e := entries[i]
		assert.Equal(t, e.ID, sig.ID)
		assert.Equal(t, e.Name, sig.Name)
		assert.Equal(t, e.Params, sig.Params)
		assert.Equal(t, e.Kind, sig.Kind)
		assert.Equal(t, e.Family, sig.Family)
	}
}
