// Package errors provides structured error types for the wasmlink module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: field path, IR type name,
// and cause chain. Decode errors carry the failing field path so they can be
// reported across the guest/host boundary.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("user", "age").
//		Type("u32").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FieldMissing(path, "age")
//	err := errors.InvalidHandle(handle, "not pending")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
