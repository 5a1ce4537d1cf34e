package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/protocol"
	"github.com/wasmlink/wasmlink/types"
)

// ImportHandler implements one imported function on the host side. Args
// arrive in declaration order as canonical codec values; the returned
// value must match the declared return type.
type ImportHandler func(ctx context.Context, args []any) (any, error)

// ImportRegistry holds the Go handlers backing the protocol's imported
// functions.
type ImportRegistry struct {
	mu    sync.RWMutex
	funcs map[string]ImportHandler
}

func NewImportRegistry() *ImportRegistry {
	return &ImportRegistry{funcs: make(map[string]ImportHandler)}
}

func (r *ImportRegistry) Register(name string, h ImportHandler) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}
	if h == nil {
		return errors.InvalidInput(errors.PhaseHost, "handler cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return errors.New(errors.PhaseHost, errors.KindConflict).
			Detail("handler for %q already registered", name).
			Build()
	}
	r.funcs[name] = h
	return nil
}

func (r *ImportRegistry) Get(name string) (ImportHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.funcs[name]
	return h, ok
}

// hostFuncs builds the host function table bound into the import
// namespace: one entry per declared import plus the async resolver.
func (r *Runtime) hostFuncs() map[string]wasmlink.HostFuncDef {
	funcs := make(map[string]wasmlink.HostFuncDef, len(r.proto.Imports())+1)
	for _, fn := range r.proto.Imports() {
		def := wasmlink.HostFuncDef{NumParams: len(fn.Args)}
		if fn.IsAsync {
			def.NumResults = 1 // the handle
			def.Fn = r.asyncImportFunc(fn)
		} else {
			if fn.Ret != nil {
				def.NumResults = 1
			}
			def.Fn = r.syncImportFunc(fn)
		}
		funcs[protocol.HostImportSymbol(fn.Name)] = def
	}
	funcs[protocol.HostResolveImport] = wasmlink.HostFuncDef{
		NumParams: 2,
		Fn:        r.resolveFunc(),
	}
	return funcs
}

func (r *Runtime) syncImportFunc(fn protocol.Function) wasmlink.HostFunc {
	return func(ctx context.Context, caller wasmlink.Guest, stack []uint64) ([]uint64, error) {
		handler, ok := r.imports.Get(fn.Name)
		if !ok {
			return nil, errors.NotFound(errors.PhaseHost, "import handler", fn.Name)
		}
		args, err := r.liftImportArgs(fn, caller, stack)
		if err != nil {
			return nil, err
		}

		out, err := handler(ctx, args)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseHost, errors.KindInstanceFailure, err, fn.Name)
		}
		if fn.Ret == nil {
			return nil, nil
		}

		if prim, flat := r.flatType(*fn.Ret); flat {
			v, err := lowerPrimitive(out, prim, []string{fn.Name})
			if err != nil {
				return nil, err
			}
			return []uint64{v}, nil
		}
		data, err := r.cod.Serialize(r.proto.Types(), *fn.Ret, out)
		if err != nil {
			return nil, err
		}
		fat, err := writeIn(caller, data)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(fat)}, nil
	}
}

// asyncImportFunc returns the handle immediately and completes the future
// from a goroutine. The completion re-enters the guest, which serializes
// behind the instance's call lock, so it cannot land before the current
// guest call returns.
func (r *Runtime) asyncImportFunc(fn protocol.Function) wasmlink.HostFunc {
	return func(ctx context.Context, caller wasmlink.Guest, stack []uint64) ([]uint64, error) {
		handler, ok := r.imports.Get(fn.Name)
		if !ok {
			return nil, errors.NotFound(errors.PhaseHost, "import handler", fn.Name)
		}
		inst, err := r.instanceFor(caller)
		if err != nil {
			return nil, err
		}
		// Argument buffers are consumed before returning so guest memory
		// is balanced regardless of when the handler runs.
		args, err := r.liftImportArgs(fn, caller, stack)
		if err != nil {
			return nil, err
		}

		handle := inst.nextImportHandle()
		r.log.Debug("dispatching async import",
			zap.String("function", fn.Name),
			zap.Uint64("handle", handle))

		go inst.completeImport(context.WithoutCancel(ctx), fn, handler, handle, args)
		return []uint64{handle}, nil
	}
}

// resolveFunc settles an async export future: (handle, result FatPtr).
func (r *Runtime) resolveFunc() wasmlink.HostFunc {
	return func(ctx context.Context, caller wasmlink.Guest, stack []uint64) ([]uint64, error) {
		if len(stack) != 2 {
			return nil, errors.InvalidInput(errors.PhaseResolve, "resolver takes a handle and a fat pointer")
		}
		inst, err := r.instanceFor(caller)
		if err != nil {
			return nil, err
		}
		data, err := readAndFree(caller, wasmlink.FatPtr(stack[1]))
		if err != nil {
			return nil, err
		}
		return nil, inst.pending.resolve(stack[0], data)
	}
}

func (r *Runtime) liftImportArgs(fn protocol.Function, caller wasmlink.Guest, stack []uint64) ([]any, error) {
	if len(stack) != len(fn.Args) {
		return nil, errors.InvalidInput(errors.PhaseHost, "argument count mismatch for "+fn.Name)
	}
	args := make([]any, len(stack))
	for n, decl := range fn.Args {
		if prim, flat := r.flatType(decl.Type); flat {
			args[n] = liftPrimitive(stack[n], prim)
			continue
		}
		data, err := readAndFree(caller, wasmlink.FatPtr(stack[n]))
		if err != nil {
			return nil, err
		}
		v, err := r.cod.Deserialize(r.proto.Types(), decl.Type, data)
		if err != nil {
			return nil, err
		}
		args[n] = v
	}
	return args, nil
}

func (r *Runtime) flatType(ident types.TypeIdent) (types.Primitive, bool) {
	ty, ok := r.proto.Types().Get(ident)
	if !ok {
		return 0, false
	}
	prim, isPrim := ty.(types.Primitive)
	return prim, isPrim
}
