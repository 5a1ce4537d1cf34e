// Package wasmlink generates and drives the call/marshaling layer between a
// sandboxed WASM guest module and its host process.
//
// The two sides share nothing but a flat, guest-owned linear memory and
// integer registers. wasmlink bridges that gap with a language-agnostic type
// IR, a pluggable serialization codec, and the FatPtr ABI: every value that
// does not fit a register is serialized, copied into guest memory, and passed
// as a single 64-bit handle packing offset and length.
//
// # Architecture Overview
//
//	wasmlink/            Root package with Memory, Allocator, Guest contracts and FatPtr
//	├── casing/          Identifier case conversions for wire names
//	├── types/           Type IR: TypeIdent, Type shapes, TypeMap, builtin resolution
//	├── protocol/        Function model, protocol aggregate, emitter contract, ABI symbols
//	├── codec/           MessagePack codec honoring the IR (tagging schemes, flattening)
//	├── runtime/         Host-side runtime: instances, call contexts, async bridging
//	├── engine/          wazero-backed Guest implementation
//	├── errors/          Structured error types for debugging
//	└── cmd/linkcli/     Module inspection and ad-hoc call tool
//
// # Quick Start
//
// Declare a protocol and bind a loaded guest:
//
//	proto := protocol.New("example")
//	proto.Export(protocol.Fn("add").
//	    Arg("a", types.U32).Arg("b", types.U32).
//	    Ret(types.U32))
//	if err := proto.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, _ := runtime.New(ctx, runtime.WithProtocol(proto))
//	mod, _ := rt.Load(ctx, wasmBytes)
//	inst, _ := mod.Instantiate(ctx)
//	defer inst.Close(ctx)
//
//	sum, err := inst.Call(ctx, "add", uint32(2), uint32(3))
//
// # Thread Safety
//
// A guest instance is owned by one execution context at a time: exactly one
// top-level call may be in flight per instance, and the runtime serializes
// entry with a mutex. Concurrent callers need separate instances. The
// pending-futures table used for async bridging is the only state shared
// across completion threads and is internally synchronized.
//
// # Memory Model
//
// Boundary allocations are made by the guest's exported allocator and freed
// exactly once by whichever side consumes the bytes, on success and error
// paths alike. A zero FatPtr is a valid empty value, never a null or error
// sentinel; absence is modeled with optional types in the IR.
package wasmlink
