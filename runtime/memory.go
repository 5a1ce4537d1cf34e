package runtime

import (
	"math"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/codec"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/types"
)

// writeIn allocates a guest buffer, writes data and returns its fat
// pointer. Ownership of the buffer transfers with the pointer.
func writeIn(g wasmlink.Guest, data []byte) (wasmlink.FatPtr, error) {
	if len(data) == 0 {
		return 0, nil
	}
	size := uint32(len(data))
	offset, err := g.Alloc(size)
	if err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	if err := g.Write(offset, data); err != nil {
		// The buffer never reached its receiver; balance the alloc.
		_ = g.Free(offset, size)
		return 0, err
	}
	return wasmlink.NewFatPtr(offset, size), nil
}

// readAndFree copies a guest buffer out and frees it. The empty fat
// pointer yields nil without touching the guest.
func readAndFree(g wasmlink.Guest, fat wasmlink.FatPtr) ([]byte, error) {
	if fat.IsEmpty() {
		return nil, nil
	}
	data, err := g.Read(fat.Offset(), fat.Len())
	if err != nil {
		return nil, err
	}
	if err := g.Free(fat.Offset(), fat.Len()); err != nil {
		return nil, err
	}
	return data, nil
}

// callFrame tracks buffers written for one call so they can be reclaimed
// if lowering fails partway. On success ownership has passed to the
// callee and the frame is discarded.
type callFrame struct {
	guest     wasmlink.Guest
	allocated []wasmlink.FatPtr
}

func (f *callFrame) writeIn(data []byte) (wasmlink.FatPtr, error) {
	fat, err := writeIn(f.guest, data)
	if err != nil {
		return 0, err
	}
	f.allocated = append(f.allocated, fat)
	return fat, nil
}

func (f *callFrame) release() {
	for _, fat := range f.allocated {
		if !fat.IsEmpty() {
			_ = f.guest.Free(fat.Offset(), fat.Len())
		}
	}
	f.allocated = nil
}

// lowerPrimitive encodes a primitive as a raw stack value: integers
// zero- or sign-extended into the low 32 or 64 bits, floats as their IEEE
// bit patterns, bools as 0 or 1.
func lowerPrimitive(v any, p types.Primitive, path []string) (uint64, error) {
	c, err := codec.ToPrimitive(v, p, errors.PhaseCall, path)
	if err != nil {
		return 0, err
	}
	switch n := c.(type) {
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int8:
		return uint64(uint32(int32(n))), nil
	case int16:
		return uint64(uint32(int32(n))), nil
	case int32:
		return uint64(uint32(n)), nil
	case int64:
		return uint64(n), nil
	case float32:
		return uint64(math.Float32bits(n)), nil
	case float64:
		return math.Float64bits(n), nil
	}
	return 0, errors.Unsupported(errors.PhaseCall, "primitive "+p.String())
}

// liftPrimitive decodes a raw stack value into the canonical Go type.
func liftPrimitive(raw uint64, p types.Primitive) any {
	switch p {
	case types.Bool:
		return raw != 0
	case types.U8:
		return uint8(raw)
	case types.U16:
		return uint16(raw)
	case types.U32:
		return uint32(raw)
	case types.U64:
		return raw
	case types.I8:
		return int8(int32(uint32(raw)))
	case types.I16:
		return int16(int32(uint32(raw)))
	case types.I32:
		return int32(uint32(raw))
	case types.I64:
		return int64(raw)
	case types.F32:
		return math.Float32frombits(uint32(raw))
	default:
		return math.Float64frombits(raw)
	}
}
