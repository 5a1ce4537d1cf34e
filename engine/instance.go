package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/protocol"
)

// Instance adapts one wazero module instance to the Guest contract.
// Allocator calls execute guest code and must come from the goroutine
// driving the current call; the runtime enforces that.
type Instance struct {
	engine *Engine
	mod    api.Module
	malloc api.Function
	free   api.Function

	// allocCtx drives allocator calls, which have no context parameter
	// in the Guest contract.
	allocCtx context.Context
}

var _ wasmlink.Guest = (*Instance)(nil)

func newInstance(ctx context.Context, e *Engine, mod api.Module) (*Instance, error) {
	if mod.Memory() == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "module exports no memory")
	}
	malloc := mod.ExportedFunction(protocol.MallocExport)
	if malloc == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "allocator export", protocol.MallocExport)
	}
	free := mod.ExportedFunction(protocol.FreeExport)
	if free == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "allocator export", protocol.FreeExport)
	}
	return &Instance{
		engine:   e,
		mod:      mod,
		malloc:   malloc,
		free:     free,
		allocCtx: context.WithoutCancel(ctx),
	}, nil
}

// Read copies length bytes out of guest memory. The copy detaches the
// result from later memory growth.
func (i *Instance) Read(offset, length uint32) ([]byte, error) {
	view, ok := i.mod.Memory().Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(offset, length, i.mod.Memory().Size())
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (i *Instance) Write(offset uint32, data []byte) error {
	if !i.mod.Memory().Write(offset, data) {
		return errors.OutOfBounds(offset, uint32(len(data)), i.mod.Memory().Size())
	}
	return nil
}

func (i *Instance) Alloc(size uint32) (uint32, error) {
	results, err := i.malloc.Call(i.allocCtx, uint64(size))
	if err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	if len(results) != 1 {
		return 0, errors.AllocationFailed(size, errors.InvalidData(errors.PhaseMemory, nil, "allocator returned no offset"))
	}
	return uint32(results[0]), nil
}

func (i *Instance) Free(offset, size uint32) error {
	_, err := i.free.Call(i.allocCtx, uint64(offset), uint64(size))
	if err != nil {
		return errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "free")
	}
	return nil
}

func (i *Instance) CallExport(ctx context.Context, name string, args []uint64) ([]uint64, error) {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "exported function", name)
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, errors.InstanceFailure(err)
	}
	return results, nil
}

func (i *Instance) Close(ctx context.Context) error {
	i.engine.untrack(i.mod)
	return i.mod.Close(ctx)
}
