// Package types defines the language-agnostic type IR used by the bindings
// generator and the runtime.
//
// Every type reachable from a declared interface function is described by a
// TypeIdent (its canonical identity, including concrete generic arguments)
// and a Type (its shape). The Serializable resolver walks declarations
// depth-first, registering each dependency into a shared TypeMap exactly
// once. The map exists only at generation time; it has no presence in the
// running guest or host processes.
package types
