package protocol

import (
	"github.com/wasmlink/wasmlink/casing"
	"github.com/wasmlink/wasmlink/types"
)

// GuestErrorDecl is the builtin error type a guest reports across the
// boundary when it cannot process incoming bytes. It is registered with
// every protocol so both sides can always exchange it.
func GuestErrorDecl() types.EnumDecl {
	return types.EnumDecl{
		Name: "GuestError",
		Variants: []types.VariantDecl{
			{
				Name: "SerdeError",
				Payload: types.StructPayload{
					Fields: []types.FieldDecl{
						{
							Name:     "path",
							Type:     types.Str,
							DocLines: []string{"Path to the field that failed to deserialize."},
						},
						{
							Name: "message",
							Type: types.Str,
						},
					},
				},
				DocLines: []string{
					"Deserialization of boundary data failed, possibly a version",
					"mismatch between guest and host.",
				},
			},
			{
				Name:     "InvalidFatPtr",
				DocLines: []string{"Received a fat pointer that does not describe an accessible region."},
			},
		},
		Options: types.EnumOptions{
			VariantCasing: casing.Snake,
			FieldCasing:   casing.Snake,
			TagProp:       "type",
		},
	}
}
