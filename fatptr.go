package wasmlink

import "fmt"

// FatPtr references a boundary-crossing value in guest linear memory:
// the high 32 bits are the byte offset, the low 32 bits the byte length.
//
// The zero FatPtr describes a valid empty value. It is never used as a
// null or error sentinel; absence is modeled at the type level.
type FatPtr uint64

// NewFatPtr packs an offset and a length into a FatPtr.
func NewFatPtr(offset, length uint32) FatPtr {
	return FatPtr(uint64(offset)<<32 | uint64(length))
}

// Offset returns the byte offset into guest linear memory.
func (p FatPtr) Offset() uint32 {
	return uint32(p >> 32)
}

// Len returns the byte length of the referenced region.
func (p FatPtr) Len() uint32 {
	return uint32(p)
}

// IsEmpty reports whether the FatPtr describes a zero-length region.
func (p FatPtr) IsEmpty() bool {
	return p.Len() == 0
}

func (p FatPtr) String() string {
	return fmt.Sprintf("FatPtr(offset=%d, len=%d)", p.Offset(), p.Len())
}
