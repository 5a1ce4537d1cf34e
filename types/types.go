package types

import "github.com/wasmlink/wasmlink/casing"

// Type describes a type's shape. It is a closed variant set; every
// implementation lives in this package.
type Type interface {
	isType()
}

// Primitive is a scalar that fits a register and bypasses the FatPtr path.
type Primitive byte

const (
	Bool Primitive = iota
	U8
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
)

func (Primitive) isType() {}

func (p Primitive) String() string {
	switch p {
	case Bool:
		return "bool"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// String is the UTF-8 string type.
type String struct{}

func (String) isType() {}

// Unit is the zero-size marker type.
type Unit struct{}

func (Unit) isType() {}

// Tuple is an ordered, heterogeneous sequence of types.
type Tuple struct {
	Items []TypeIdent
}

func (Tuple) isType() {}

// List is a homogeneous sequence container. Name records the declared
// container (e.g. "List") for emitters mapping back to a native type.
type List struct {
	Name string
	Elem TypeIdent
}

func (List) isType() {}

// Set is an unordered collection of unique elements. Its wire form is the
// same as List's.
type Set struct {
	Name string
	Elem TypeIdent
}

func (Set) isType() {}

// Map is a key/value container.
type Map struct {
	Name  string
	Key   TypeIdent
	Value TypeIdent
}

func (Map) isType() {}

// Container is a single-generic wrapper (optional value, heap box, shared
// pointer). Containers are structurally transparent: they serialize as
// their inner type, with presence/absence semantics for the optional.
type Container struct {
	Name  string
	Inner TypeIdent
}

func (Container) isType() {}

// Struct is an ordered list of named fields.
type Struct struct {
	Ident    TypeIdent
	Fields   []Field
	DocLines []string
	Options  StructOptions
}

func (Struct) isType() {}

// Field is one struct field.
type Field struct {
	Name     string
	Type     TypeIdent
	DocLines []string
	Attrs    FieldAttrs
}

// FieldAttrs carries per-field serialization attributes.
type FieldAttrs struct {
	// Rename overrides the wire name. An explicit rename always wins over
	// the struct's inherited casing.
	Rename string

	// Flatten merges this field's own fields into the parent's wire
	// representation. Only legal when the field's type is a Struct or Map.
	Flatten bool
}

// WireName returns the serialized field name under the given casing.
func (f Field) WireName(c casing.Casing) string {
	if f.Attrs.Rename != "" {
		return f.Attrs.Rename
	}
	return casing.Convert(f.Name, c)
}

// StructOptions configures how a struct serializes.
type StructOptions struct {
	FieldCasing casing.Casing

	// HasUntypedFields marks structs with a flattened catch-all map, which
	// forces emitters to keep unknown wire fields around.
	HasUntypedFields bool

	// NativeModules maps an emission target to a module path that already
	// provides this type, instead of generating a fresh definition.
	NativeModules map[string]string
}

// Enum is an ordered list of variants plus the tagging convention that
// disambiguates them on the wire.
type Enum struct {
	Ident    TypeIdent
	Variants []Variant
	DocLines []string
	Options  EnumOptions
}

func (Enum) isType() {}

// Variant is one enum variant. Payload is Unit, Tuple or Struct.
type Variant struct {
	Name     string
	Payload  Type
	DocLines []string
	Attrs    VariantAttrs
}

// VariantAttrs carries per-variant serialization attributes.
type VariantAttrs struct {
	// Rename overrides the wire name, winning over the enum's casing.
	Rename string
}

// WireName returns the serialized variant name under the given casing.
func (v Variant) WireName(c casing.Casing) string {
	if v.Attrs.Rename != "" {
		return v.Attrs.Rename
	}
	return casing.Convert(v.Name, c)
}

// Tagging is the wire convention for discriminating enum variants.
type Tagging int

const (
	// External is the default: {"VariantName": payload}.
	External Tagging = iota
	// Internal merges the payload struct's fields with a tag field.
	Internal
	// Adjacent uses separate tag and content properties.
	Adjacent
	// Untagged discriminates purely by structural shape, trying variants
	// in declaration order.
	Untagged
)

func (t Tagging) String() string {
	switch t {
	case Internal:
		return "internal"
	case Adjacent:
		return "adjacent"
	case Untagged:
		return "untagged"
	default:
		return "external"
	}
}

// EnumOptions configures variant naming and the tagging scheme.
type EnumOptions struct {
	VariantCasing casing.Casing
	FieldCasing   casing.Casing

	// TagProp names the tag property for internal/adjacent tagging.
	TagProp string
	// ContentProp names the content property; setting it together with
	// TagProp selects adjacent tagging.
	ContentProp string
	// NoTag selects untagged representation, overriding TagProp.
	NoTag bool

	NativeModules map[string]string
}

// Tagging derives the scheme from the configured properties.
func (o EnumOptions) Tagging() Tagging {
	switch {
	case o.NoTag:
		return Untagged
	case o.TagProp != "" && o.ContentProp != "":
		return Adjacent
	case o.TagProp != "":
		return Internal
	default:
		return External
	}
}
