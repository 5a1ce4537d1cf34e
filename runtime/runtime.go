package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/codec"
	"github.com/wasmlink/wasmlink/engine"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/protocol"
)

// Engine compiles guest binaries and produces instances with the
// runtime's host functions bound. The default is the wazero engine.
type Engine interface {
	BindHost(ctx context.Context, namespace string, funcs map[string]wasmlink.HostFuncDef) error
	Compile(ctx context.Context, binary []byte) (CompiledModule, error)
	Close(ctx context.Context) error
}

// CompiledModule is a compiled guest binary ready to instantiate.
type CompiledModule interface {
	Instantiate(ctx context.Context) (wasmlink.Guest, error)
	Close(ctx context.Context) error
}

// engineAdapter narrows the wazero engine's concrete Compile result to
// the CompiledModule interface.
type engineAdapter struct {
	*engine.Engine
}

func (a engineAdapter) Compile(ctx context.Context, binary []byte) (CompiledModule, error) {
	return a.Engine.Compile(ctx, binary)
}

type Runtime struct {
	proto   *protocol.Protocol
	cod     codec.Codec
	log     *zap.Logger
	engine  Engine
	imports *ImportRegistry

	mu        sync.RWMutex
	instances map[wasmlink.Guest]*Instance
}

type Option func(*Runtime)

// WithProtocol sets the protocol the runtime serves. Required.
func WithProtocol(p *protocol.Protocol) Option {
	return func(r *Runtime) { r.proto = p }
}

// WithCodec overrides the default MessagePack codec.
func WithCodec(c codec.Codec) Option {
	return func(r *Runtime) { r.cod = c }
}

// WithLogger sets the runtime logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithEngine overrides the default wazero engine.
func WithEngine(e Engine) Option {
	return func(r *Runtime) { r.engine = e }
}

// WrapEngine adapts a configured wazero engine so it can be passed to
// WithEngine.
func WrapEngine(e *engine.Engine) Engine {
	return engineAdapter{e}
}

// New creates a runtime for a validated protocol and binds its imported
// functions as host functions. Import handlers must be registered with
// RegisterImport before any module is loaded.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		cod:       codec.Msgpack{},
		log:       zap.NewNop(),
		imports:   NewImportRegistry(),
		instances: make(map[wasmlink.Guest]*Instance),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.proto == nil {
		return nil, errors.NotInitialized(errors.PhaseCall, "protocol")
	}
	if err := r.proto.Validate(); err != nil {
		return nil, err
	}

	if r.engine == nil {
		eng, err := engine.New(ctx, engine.WithLogger(r.log))
		if err != nil {
			return nil, errors.Load("create engine", err)
		}
		r.engine = engineAdapter{eng}
	}

	if err := r.engine.BindHost(ctx, protocol.ImportNamespace, r.hostFuncs()); err != nil {
		return nil, errors.Load("bind host functions", err)
	}
	return r, nil
}

// RegisterImport registers the Go handler for a declared import. The
// function must exist in the protocol's import list.
func (r *Runtime) RegisterImport(name string, h ImportHandler) error {
	if _, ok := r.proto.Imports().Get(name); !ok {
		return errors.NotFound(errors.PhaseHost, "imported function", name)
	}
	return r.imports.Register(name, h)
}

// Load compiles a guest binary. The binary must export the protocol's
// generated symbols plus the allocator pair.
func (r *Runtime) Load(ctx context.Context, binary []byte) (*Module, error) {
	mod, err := r.engine.Compile(ctx, binary)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	return &Module{runtime: r, compiled: mod}, nil
}

// Protocol returns the protocol this runtime serves.
func (r *Runtime) Protocol() *protocol.Protocol { return r.proto }

// Close releases engine resources. All instances must be closed first.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

func (r *Runtime) track(g wasmlink.Guest, inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[g] = inst
}

func (r *Runtime) untrack(g wasmlink.Guest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, g)
}

// instanceFor resolves the Instance owning a guest, for host function
// dispatch on re-entrant calls.
func (r *Runtime) instanceFor(g wasmlink.Guest) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[g]
	if !ok {
		return nil, errors.New(errors.PhaseHost, errors.KindNotFound).
			Detail("caller is not a tracked instance").
			Build()
	}
	return inst, nil
}
