package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/errors"
)

// Engine wraps one wazero runtime. Host namespaces are instantiated once
// per engine; modules compiled by the same engine share them.
type Engine struct {
	runtime wazero.Runtime
	log     *zap.Logger

	mu        sync.RWMutex
	instances map[api.Module]*Instance
}

type Option func(*config)

type config struct {
	log              *zap.Logger
	memoryLimitPages uint32
}

// WithLogger sets the engine logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithMemoryLimitPages caps guest memory in 64KiB pages. Zero keeps the
// wazero default of 4GiB.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *config) { c.memoryLimitPages = pages }
}

func New(ctx context.Context, opts ...Option) (*Engine, error) {
	cfg := config{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.memoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	return &Engine{
		runtime:   wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		log:       cfg.log,
		instances: make(map[api.Module]*Instance),
	}, nil
}

// BindHost instantiates a host module exposing funcs under namespace.
// Must be called before any guest importing the namespace is
// instantiated, and once per namespace.
func (e *Engine) BindHost(ctx context.Context, namespace string, funcs map[string]wasmlink.HostFuncDef) error {
	builder := e.runtime.NewHostModuleBuilder(namespace)
	for name, def := range funcs {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(e.wrap(name, def), i64Slots(def.NumParams), i64Slots(def.NumResults)).
			Export(name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Load("instantiate host namespace "+namespace, err)
	}
	return nil
}

// wrap adapts a HostFunc to wazero's in-place stack convention. A host
// error traps the calling guest.
func (e *Engine) wrap(name string, def wasmlink.HostFuncDef) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		caller, err := e.callerFor(mod)
		if err != nil {
			panic(err)
		}
		args := make([]uint64, def.NumParams)
		copy(args, stack)

		results, err := def.Fn(ctx, caller, args)
		if err != nil {
			e.log.Error("host function failed",
				zap.String("function", name),
				zap.Error(err))
			panic(err)
		}
		if len(results) < def.NumResults {
			panic(errors.InvalidData(errors.PhaseHost, []string{name}, "host function returned too few values"))
		}
		for n := 0; n < def.NumResults; n++ {
			stack[n] = results[n]
		}
	}
}

func i64Slots(n int) []api.ValueType {
	slots := make([]api.ValueType, n)
	for i := range slots {
		slots[i] = api.ValueTypeI64
	}
	return slots
}

// Compile compiles a core module binary.
func (e *Engine) Compile(ctx context.Context, binary []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, binary)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	return &Module{engine: e, compiled: compiled}, nil
}

func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *Engine) track(mod api.Module, inst *Instance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instances[mod] = inst
}

func (e *Engine) untrack(mod api.Module) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.instances, mod)
}

// callerFor maps the module a host call arrived from back to its
// instance.
func (e *Engine) callerFor(mod api.Module) (wasmlink.Guest, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances[mod]
	if !ok {
		return nil, errors.New(errors.PhaseHost, errors.KindNotFound).
			Detail("host call from untracked module %q", mod.Name()).
			Build()
	}
	return inst, nil
}

// Module is a compiled guest binary.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// Instantiate creates a fresh anonymous instance. The module must export
// linear memory and the allocator pair.
func (m *Module) Instantiate(ctx context.Context) (wasmlink.Guest, error) {
	modCfg := wazero.NewModuleConfig().WithName("")
	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, errors.Load("instantiate module", err)
	}

	inst, err := newInstance(ctx, m.engine, mod)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	m.engine.track(mod, inst)
	return inst, nil
}

// ExportedFunctions returns the raw wasm export names, sorted.
func (m *Module) ExportedFunctions() []string {
	var names []string
	for name := range m.compiled.ExportedFunctions() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImportedFunctions returns the raw wasm function imports as
// "module.name" pairs, in declaration order.
func (m *Module) ImportedFunctions() []string {
	var names []string
	for _, def := range m.compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		names = append(names, mod+"."+name)
	}
	return names
}

func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
