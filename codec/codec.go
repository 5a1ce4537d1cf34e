// Package codec serializes values across the guest/host boundary.
//
// The call protocol only fixes the framing (offset+length fat pointers);
// the byte contents are produced by a Codec. The default implementation is
// MessagePack, which is self-describing and covers every IR type shape,
// all four enum tagging schemes, field flattening and option omission.
//
// Values are dynamic: primitives as their sized Go types, strings, []any
// for tuples/lists/sets, map[string]any (or map[any]any for non-string
// keys) for maps and structs keyed by declared field name, EnumValue for
// enums, and nil for unit or an absent optional. Single-element tuples
// serialize as the bare element; Box and Shared containers are
// transparent.
package codec

import "github.com/wasmlink/wasmlink/types"

// Codec turns values of a registered type into wire bytes and back.
// Implementations must round-trip every Type shape losslessly.
type Codec interface {
	Serialize(tm *types.TypeMap, ident types.TypeIdent, v any) ([]byte, error)
	Deserialize(tm *types.TypeMap, ident types.TypeIdent, data []byte) (any, error)
}

// EnumValue is the dynamic representation of an enum: the declared variant
// name plus its payload in canonical form (nil for unit, the bare element
// for single-item tuples, []any for wider tuples, map[string]any for
// struct payloads).
type EnumValue struct {
	Variant string
	Payload any
}
