package callbridge

import "strconv"

// Handle is an opaque identifier for a resource owned by the native library.
// The bridge never dereferences it; two handles are equal iff their values are.
type Handle uint32

// GlobalHandle keys library-wide events that are not attached to a resource.
const GlobalHandle Handle = 0

// String returns the handle in hexadecimal form.
func (h Handle) String() string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}

// Memory represents native linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of native memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory on the native side
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
