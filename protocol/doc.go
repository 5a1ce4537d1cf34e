// Package protocol models the declared interface between host and guest:
// exported and imported function signatures, the shared type map seeded
// from them, and the well-known ABI symbols both sides must agree on.
//
// A Protocol is built once, validated, and then handed to a target emitter
// (to generate bindings) or to the runtime (to drive dynamic calls). The
// two directions are disjoint: exports are called by the host into the
// guest, imports by the guest into the host; the FatPtr call protocol is
// identical in shape for both.
package protocol
