package wasmlib_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/native/wasmlib"
)

func TestMemory_Bounds(t *testing.T) {
	ctx := context.Background()
	lib, err := wasmlib.New(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close(ctx) })

	mem := lib.Memory()
	end := mem.Size()

	require.NoError(t, mem.WriteU32(end-4, 0xCAFEBABE))
	v, err := mem.ReadU32(end - 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), v)

	readFault := &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindOutOfBounds}
	writeFault := &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindOutOfBounds}

	_, err = mem.Read(end-2, 4)
	assert.ErrorIs(t, err, readFault)
	_, err = mem.ReadU8(end)
	assert.ErrorIs(t, err, readFault)
	_, err = mem.ReadU32(end - 2)
	assert.ErrorIs(t, err, readFault)

	assert.ErrorIs(t, mem.Write(end-1, []byte{1, 2}), writeFault)
	assert.ErrorIs(t, mem.WriteU8(end, 1), writeFault)
	assert.ErrorIs(t, mem.WriteU32(end-3, 1), writeFault)
}

func TestAllocator_Errors(t *testing.T) {
	ctx := context.Background()
	lib, err := wasmlib.New(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close(ctx) })

	alloc := lib.Allocator(ctx)
	allocFault := &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindAllocation}

	_, err = alloc.Alloc(8, 16)
	assert.ErrorIs(t, err, allocFault)

	_, err = alloc.Alloc(lib.Memory().Size(), 1)
	assert.ErrorIs(t, err, allocFault)

	ptr, err := alloc.Alloc(16, 4)
	require.NoError(t, err)
	assert.NotZero(t, ptr)
	alloc.Free(ptr, 16, 4)
}
