// Package linear provides a byte-slice linear memory with a LIFO bump
// allocator, the in-process stand-in for native memory.
package linear

import (
	"encoding/binary"
	"fmt"
)

// Memory is a fixed-size little-endian linear memory. Address 0 is never
// handed out by Alloc so it can serve as the null pointer.
type Memory struct {
	data  []byte
	marks []mark
	heap  uint32
}

type mark struct {
	ptr, prev uint32
}

// New creates a memory of size bytes. Allocation starts at 8.
func New(size uint32) *Memory {
	return &Memory{data: make([]byte, size), heap: 8}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Bytes exposes the backing storage.
func (m *Memory) Bytes() []byte {
	return m.data
}

func (m *Memory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d", offset, length)
	}
	return nil
}

// Read returns a view of length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

// Write copies data to offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

// Alloc reserves size bytes aligned to align.
func (m *Memory) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	ptr := (m.heap + align - 1) &^ (align - 1)
	if err := m.check(ptr, size); err != nil {
		return 0, fmt.Errorf("alloc %d bytes: %w", size, err)
	}
	m.marks = append(m.marks, mark{ptr: ptr, prev: m.heap})
	m.heap = ptr + size
	return ptr, nil
}

// Free releases the most recent allocation; other frees are ignored.
func (m *Memory) Free(ptr, _, _ uint32) {
	if n := len(m.marks); n > 0 && m.marks[n-1].ptr == ptr {
		m.heap = m.marks[n-1].prev
		m.marks = m.marks[:n-1]
	}
}

// Used returns the current heap top.
func (m *Memory) Used() uint32 {
	return m.heap
}

// PutCString writes s followed by NUL at a fresh allocation.
func (m *Memory) PutCString(s string) (uint32, error) {
	ptr, err := m.Alloc(uint32(len(s))+1, 1)
	if err != nil {
		return 0, err
	}
	if err := m.Write(ptr, append([]byte(s), 0)); err != nil {
		return 0, err
	}
	return ptr, nil
}
