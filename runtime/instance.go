package runtime

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/protocol"
)

// Instance is one live guest. One top-level call runs at a time; a call
// waiting on an async result releases the instance so the guest can be
// re-entered to settle it.
type Instance struct {
	runtime *Runtime
	guest   wasmlink.Guest
	pending *pendingTable
	log     *zap.Logger

	callMu sync.Mutex
	closed bool

	importHandle atomic.Uint64
}

// Call invokes a declared export. Arguments are canonical codec values;
// primitives may be any Go numeric type in range. For a synchronous
// function the result is returned directly; for an async function Call
// blocks until the guest resolves the returned handle or ctx is done.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := i.runtime.proto.Exports().Get(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseCall, "exported function", name)
	}
	if len(args) != len(fn.Args) {
		return nil, errors.InvalidInput(errors.PhaseCall, "argument count mismatch")
	}

	i.callMu.Lock()
	if i.closed {
		i.callMu.Unlock()
		return nil, errors.NotInitialized(errors.PhaseCall, "instance")
	}

	frame := &callFrame{guest: i.guest}
	stack, err := i.lowerArgs(fn, args, frame)
	if err != nil {
		frame.release()
		i.callMu.Unlock()
		return nil, err
	}

	i.log.Debug("calling export",
		zap.String("function", fn.Name),
		zap.Bool("async", fn.IsAsync))

	results, err := i.guest.CallExport(ctx, protocol.GuestExportSymbol(fn.Name), stack)
	if err != nil {
		// Ownership of argument buffers passed to the guest; do not
		// free them after a trap.
		i.callMu.Unlock()
		return nil, errors.InstanceFailure(err)
	}

	if fn.IsAsync {
		return i.awaitHandle(ctx, fn, results)
	}

	defer i.callMu.Unlock()
	return i.liftResult(fn, results)
}

// awaitHandle registers the callee-assigned handle and waits for the
// guest to resolve it. Called with callMu held; releases it before
// blocking so resolution can be driven by further guest entry.
func (i *Instance) awaitHandle(ctx context.Context, fn protocol.Function, results []uint64) (any, error) {
	if len(results) < 1 {
		i.callMu.Unlock()
		return nil, errors.InvalidData(errors.PhaseCall, []string{fn.Name}, "async call returned no handle")
	}
	handle := results[0]
	ch, err := i.pending.register(handle)
	i.callMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		i.pending.cancel(handle)
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindInstanceFailure, ctx.Err(), "await "+fn.Name)
	case data, ok := <-ch:
		if !ok {
			return nil, errors.InstanceFailure(errors.NotInitialized(errors.PhaseResolve, "instance"))
		}
		if fn.Ret == nil {
			return nil, nil
		}
		return i.runtime.cod.Deserialize(i.runtime.proto.Types(), *fn.Ret, data)
	}
}

// lowerArgs turns declared arguments into stack values, serializing
// non-primitives into guest memory via frame.
func (i *Instance) lowerArgs(fn protocol.Function, args []any, frame *callFrame) ([]uint64, error) {
	stack := make([]uint64, len(args))
	for n, arg := range args {
		decl := fn.Args[n]
		if prim, flat := i.runtime.flatType(decl.Type); flat {
			v, err := lowerPrimitive(arg, prim, []string{fn.Name, decl.Name})
			if err != nil {
				return nil, err
			}
			stack[n] = v
			continue
		}

		data, err := i.runtime.cod.Serialize(i.runtime.proto.Types(), decl.Type, arg)
		if err != nil {
			return nil, err
		}
		fat, err := frame.writeIn(data)
		if err != nil {
			return nil, err
		}
		stack[n] = uint64(fat)
	}
	return stack, nil
}

// liftResult decodes a synchronous return value: flat primitives from the
// stack, everything else from a guest-owned buffer the host frees.
func (i *Instance) liftResult(fn protocol.Function, results []uint64) (any, error) {
	if fn.Ret == nil {
		return nil, nil
	}
	if len(results) < 1 {
		return nil, errors.InvalidData(errors.PhaseCall, []string{fn.Name}, "missing return value")
	}

	if prim, flat := i.runtime.flatType(*fn.Ret); flat {
		return liftPrimitive(results[0], prim), nil
	}

	data, err := readAndFree(i.guest, wasmlink.FatPtr(results[0]))
	if err != nil {
		return nil, err
	}
	return i.runtime.cod.Deserialize(i.runtime.proto.Types(), *fn.Ret, data)
}

// completeImport finishes an async import: run the handler, then re-enter
// the guest with the serialized result. Handler failures cannot reach the
// guest and are logged; the future stays unresolved.
func (i *Instance) completeImport(ctx context.Context, fn protocol.Function, h ImportHandler, handle uint64, args []any) {
	out, err := h(ctx, args)
	if err != nil {
		i.log.Error("async import handler failed",
			zap.String("function", fn.Name),
			zap.Uint64("handle", handle),
			zap.Error(err))
		return
	}

	i.callMu.Lock()
	defer i.callMu.Unlock()
	if i.closed {
		return
	}

	var fat wasmlink.FatPtr
	if fn.Ret != nil {
		data, err := i.runtime.cod.Serialize(i.runtime.proto.Types(), *fn.Ret, out)
		if err != nil {
			i.log.Error("async import result serialization failed",
				zap.String("function", fn.Name), zap.Error(err))
			return
		}
		fat, err = writeIn(i.guest, data)
		if err != nil {
			i.log.Error("async import result write failed",
				zap.String("function", fn.Name), zap.Error(err))
			return
		}
	}

	if _, err := i.guest.CallExport(ctx, protocol.GuestResolveExport, []uint64{handle, uint64(fat)}); err != nil {
		i.log.Error("guest resolve entry failed",
			zap.String("function", fn.Name),
			zap.Uint64("handle", handle),
			zap.Error(err))
	}
}

func (i *Instance) nextImportHandle() uint64 {
	return i.importHandle.Add(1)
}

// Close tears down the guest. Pending async calls fail with an instance
// error.
func (i *Instance) Close(ctx context.Context) error {
	i.callMu.Lock()
	defer i.callMu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	i.runtime.untrack(i.guest)
	i.pending.close()
	return i.guest.Close(ctx)
}
