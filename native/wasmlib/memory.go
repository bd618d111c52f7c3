package wasmlib

import (
	"context"
	stderrors "errors"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/callbridge/errors"
)

var (
	errGuestBounds    = stderrors.New("outside guest memory")
	errGuestExhausted = stderrors.New("guest heap exhausted")
	errGuestAlign     = stderrors.New("guest blocks are 8-byte aligned")
)

// Memory is the guest's linear memory seen as callbridge.Memory. Reads
// fail with a decode-phase out_of_bounds error, writes with an encode-phase
// one.
type Memory struct {
	guest api.Memory
}

func newMemory(m api.Memory) *Memory {
	return &Memory{guest: m}
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.guest.Size()
}

func readFault(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseDecode, offset, length, errGuestBounds)
}

func writeFault(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseEncode, offset, length, errGuestBounds)
}

// Read returns a view of guest memory; it aliases the guest until the next
// guest call that grows memory.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if data, ok := m.guest.Read(offset, length); ok {
		return data, nil
	}
	return nil, readFault(offset, length)
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if m.guest.Write(offset, data) {
		return nil
	}
	return writeFault(offset, uint32(len(data)))
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if v, ok := m.guest.ReadByte(offset); ok {
		return v, nil
	}
	return 0, readFault(offset, 1)
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if v, ok := m.guest.ReadUint32Le(offset); ok {
		return v, nil
	}
	return 0, readFault(offset, 4)
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if m.guest.WriteByte(offset, value) {
		return nil
	}
	return writeFault(offset, 1)
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if m.guest.WriteUint32Le(offset, value) {
		return nil
	}
	return writeFault(offset, 4)
}

// Allocator hands out blocks of the guest heap through its alloc and free
// exports. Freeing is LIFO: only the latest block goes back to the heap.
type Allocator struct {
	ctx   context.Context
	alloc api.Function
	free  api.Function
}

// Alloc reserves size bytes. The guest cannot honor alignments above 8.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align > 8 {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align, errGuestAlign)
	}
	results, err := a.alloc.Call(a.ctx, uint64(size))
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align, err)
	}
	ptr := api.DecodeU32(results[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align, errGuestExhausted)
	}
	return ptr, nil
}

func (a *Allocator) Free(ptr, size, _ uint32) {
	_, _ = a.free.Call(a.ctx, uint64(ptr), uint64(size))
}
