// Package runtime executes protocol calls against live guest instances.
//
// A Runtime is built around one validated protocol.Protocol. It binds the
// protocol's imported functions as host functions in the "wl" namespace,
// loads guest binaries through an Engine (wazero by default), and hands
// out Instances whose Call method speaks the fat pointer ABI: primitive
// arguments travel as raw stack values, everything else is serialized,
// written into guest memory through the guest's exported allocator, and
// passed as an offset/length pair.
//
// Memory ownership follows one rule: the receiver frees. Argument buffers
// the host writes for the guest are freed by the guest; result buffers
// the guest returns are read and freed by the host. The same rule applies
// in reverse for imported functions.
//
// Asynchronous functions exchange opaque uint64 handles instead of
// results. An async export returns a handle immediately; the guest
// settles it later by calling the __wl_host_resolve_async import, which
// completes the pending Call. An async import returns a host-assigned
// handle to the guest; when the Go handler finishes, the runtime
// re-enters the guest through __wl_guest_resolve_async with the
// serialized result.
//
// An Instance supports one top-level call at a time. Calls waiting on an
// async result release the instance, so resolution can be driven by
// subsequent calls into the guest.
package runtime
