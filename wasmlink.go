package wasmlink

import "context"

// Memory is raw access to the guest's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
}

// Allocator allocates and frees regions of guest linear memory by calling
// the guest's exported allocator. Both calls are synchronous and must be
// made from the execution context driving the current call.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(offset uint32, size uint32) error
}

// Guest is one instantiated guest module. Implementations are not required
// to be safe for concurrent use; the runtime serializes access.
type Guest interface {
	Memory
	Allocator

	// CallExport invokes an exported guest function by name. Arguments and
	// results are raw stack values: integers, float bits, FatPtrs and async
	// handles, one uint64 slot each.
	CallExport(ctx context.Context, name string, args []uint64) ([]uint64, error)

	Close(ctx context.Context) error
}

// HostFunc is one host-provided function exposed to guests as a wasm
// import. The caller is the guest instance whose code invoked it; stack
// values follow the same raw encoding as Guest.CallExport.
type HostFunc func(ctx context.Context, caller Guest, stack []uint64) ([]uint64, error)

// HostFuncDef pairs a HostFunc with its wasm-level arity. Every slot is
// an i64 on the wire, so counts fully describe the signature.
type HostFuncDef struct {
	NumParams  int
	NumResults int
	Fn         HostFunc
}
