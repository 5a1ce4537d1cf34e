// Package engine runs guest modules on wazero.
//
// It is the only package that touches the wasm runtime directly. The
// Engine compiles core modules, instantiates the host import namespace,
// and produces instances that satisfy the root Guest contract: linear
// memory access, the guest allocator pair, and raw exported-function
// calls. Everything above the stack-value level (serialization, fat
// pointer ownership, async handles) belongs to the runtime package.
//
// The ABI is uniformly i64: every parameter and result of a generated
// import or export occupies one i64 slot, whether it carries an integer,
// float bits, a fat pointer or an async handle.
package engine
