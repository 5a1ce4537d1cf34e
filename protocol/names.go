package protocol

import "github.com/wasmlink/wasmlink/casing"

// Well-known ABI symbols. Emitters and the runtime must agree on these;
// they are the entire name-level surface of the FatPtr ABI.
const (
	// ImportNamespace is the wasm module name guest imports resolve
	// against.
	ImportNamespace = "wl"

	// MallocExport is the guest's allocator: (size: u32) -> u32 offset.
	MallocExport = "__wl_malloc"

	// FreeExport is the guest's deallocator: (offset: u32, size: u32).
	FreeExport = "__wl_free"

	// GuestResolveExport is the guest entry point the host calls to
	// resolve an async import: (handle: u64, result: FatPtr).
	GuestResolveExport = "__wl_guest_resolve_async"

	// HostResolveImport is the host entry point the guest calls to
	// resolve an async export: (handle: u64, result: FatPtr).
	HostResolveImport = "__wl_host_resolve_async"

	genPrefix = "__wl_gen_"
)

// GuestExportSymbol returns the wasm export name generated for a declared
// export function.
func GuestExportSymbol(name string) string {
	return genPrefix + casing.Convert(name, casing.Snake)
}

// HostImportSymbol returns the wasm import name generated for a declared
// import function, within ImportNamespace.
func HostImportSymbol(name string) string {
	return genPrefix + casing.Convert(name, casing.Snake)
}
