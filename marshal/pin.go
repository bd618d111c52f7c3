package marshal

import (
	"encoding/binary"

	"github.com/wippyai/callbridge"
	"github.com/wippyai/callbridge/errors"
)

type block struct {
	ptr, size, align uint32
}

// Pinned is native memory holding a copy of Go data for one native call.
// Ptr stays valid until Release.
type Pinned struct {
	alloc  callbridge.Allocator
	blocks []block
	Ptr    uint32
	// Len is the byte length for Pin and PinString, the element count for
	// PinStrings.
	Len uint32
}

// Release frees the native memory in reverse allocation order. It is safe to
// call more than once.
func (p *Pinned) Release() {
	if p == nil || p.alloc == nil {
		return
	}
	for i := len(p.blocks) - 1; i >= 0; i-- {
		b := p.blocks[i]
		p.alloc.Free(b.ptr, b.size, b.align)
	}
	p.blocks = nil
	p.alloc = nil
}

// Pin copies data into freshly allocated native memory.
func Pin(mem callbridge.Memory, alloc callbridge.Allocator, data []byte) (*Pinned, error) {
	p := &Pinned{alloc: alloc}
	ptr, err := p.copyIn(mem, data, 1)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.Ptr = ptr
	p.Len = uint32(len(data))
	return p, nil
}

// PinString copies s, encoded and NUL-terminated, into native memory.
func (a *Adapter) PinString(mem callbridge.Memory, alloc callbridge.Allocator, s string) (*Pinned, error) {
	raw, err := a.cstringBytes(s)
	if err != nil {
		return nil, err
	}
	p := &Pinned{alloc: alloc}
	ptr, err := p.copyIn(mem, raw, 1)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.Ptr = ptr
	p.Len = uint32(len(raw) - 1)
	return p, nil
}

// PinStrings lays out ss the way Strings reads it: one NUL-terminated buffer
// per element and an array of u32 pointers. Ptr addresses the array.
func (a *Adapter) PinStrings(mem callbridge.Memory, alloc callbridge.Allocator, ss []string) (*Pinned, error) {
	p := &Pinned{alloc: alloc}
	table := make([]byte, 4*len(ss))
	for i, s := range ss {
		raw, err := a.cstringBytes(s)
		if err != nil {
			p.Release()
			return nil, err
		}
		ptr, err := p.copyIn(mem, raw, 1)
		if err != nil {
			p.Release()
			return nil, err
		}
		binary.LittleEndian.PutUint32(table[i*4:], ptr)
	}
	ptr, err := p.copyIn(mem, table, 4)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.Ptr = ptr
	p.Len = uint32(len(ss))
	return p, nil
}

func (a *Adapter) cstringBytes(s string) ([]byte, error) {
	raw, err := a.Encode(s)
	if err != nil {
		return nil, err
	}
	return append(raw, 0), nil
}

func (p *Pinned) copyIn(mem callbridge.Memory, data []byte, align uint32) (uint32, error) {
	size := uint32(len(data))
	if size == 0 {
		size = 1
	}
	ptr, err := p.alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align, err)
	}
	p.blocks = append(p.blocks, block{ptr: ptr, size: size, align: align})
	if len(data) > 0 {
		if err := mem.Write(ptr, data); err != nil {
			return 0, errors.OutOfBounds(errors.PhaseEncode, ptr, size, err)
		}
	}
	return ptr, nil
}
