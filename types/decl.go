package types

// FieldDecl declares one struct field.
type FieldDecl struct {
	Name     string
	Type     Serializable
	DocLines []string
	Attrs    FieldAttrs
}

// StructDecl declares a user struct. For generic structs, TypeArgs holds
// the concrete instantiation arguments; each instantiation is a distinct
// entry in the type map.
type StructDecl struct {
	Name     string
	TypeArgs []Serializable
	Fields   []FieldDecl
	DocLines []string
	Options  StructOptions
}

func (d StructDecl) Ident() TypeIdent {
	args := make([]TypeIdent, len(d.TypeArgs))
	for i, a := range d.TypeArgs {
		args[i] = a.Ident()
	}
	return Ident(d.Name, args...)
}

func (d StructDecl) Def() Type {
	fields := make([]Field, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = Field{
			Name:     f.Name,
			Type:     f.Type.Ident(),
			DocLines: f.DocLines,
			Attrs:    f.Attrs,
		}
	}
	return Struct{
		Ident:    d.Ident(),
		Fields:   fields,
		DocLines: d.DocLines,
		Options:  d.Options,
	}
}

func (d StructDecl) CollectTypes(tm *TypeMap) {
	if !tm.Register(d.Ident(), d.Def()) {
		return
	}
	for _, a := range d.TypeArgs {
		a.CollectTypes(tm)
	}
	for _, f := range d.Fields {
		f.Type.CollectTypes(tm)
	}
}

// VariantDecl declares one enum variant.
type VariantDecl struct {
	Name     string
	Payload  PayloadDecl
	DocLines []string
	Attrs    VariantAttrs
}

// PayloadDecl is the declared shape of a variant payload: unit, tuple or
// struct.
type PayloadDecl interface {
	payload(owner EnumDecl, variantName string) Type
	collect(tm *TypeMap)
}

// UnitPayload declares a payload-free variant.
type UnitPayload struct{}

func (UnitPayload) payload(EnumDecl, string) Type { return Unit{} }
func (UnitPayload) collect(*TypeMap)              {}

// TuplePayload declares a positional payload.
type TuplePayload struct {
	Items []Serializable
}

func (p TuplePayload) payload(EnumDecl, string) Type {
	items := make([]TypeIdent, len(p.Items))
	for i, it := range p.Items {
		items[i] = it.Ident()
	}
	return Tuple{Items: items}
}

func (p TuplePayload) collect(tm *TypeMap) {
	for _, it := range p.Items {
		it.CollectTypes(tm)
	}
}

// StructPayload declares a named-field payload. Its fields inherit the
// enum's field casing.
type StructPayload struct {
	Fields []FieldDecl
}

func (p StructPayload) payload(owner EnumDecl, variantName string) Type {
	fields := make([]Field, len(p.Fields))
	for i, f := range p.Fields {
		fields[i] = Field{
			Name:     f.Name,
			Type:     f.Type.Ident(),
			DocLines: f.DocLines,
			Attrs:    f.Attrs,
		}
	}
	return Struct{
		Ident:  Ident(variantName),
		Fields: fields,
		Options: StructOptions{
			FieldCasing: owner.Options.FieldCasing,
		},
	}
}

func (p StructPayload) collect(tm *TypeMap) {
	for _, f := range p.Fields {
		f.Type.CollectTypes(tm)
	}
}

// EnumDecl declares a user enum.
type EnumDecl struct {
	Name     string
	TypeArgs []Serializable
	Variants []VariantDecl
	DocLines []string
	Options  EnumOptions
}

func (d EnumDecl) Ident() TypeIdent {
	args := make([]TypeIdent, len(d.TypeArgs))
	for i, a := range d.TypeArgs {
		args[i] = a.Ident()
	}
	return Ident(d.Name, args...)
}

func (d EnumDecl) Def() Type {
	variants := make([]Variant, len(d.Variants))
	for i, v := range d.Variants {
		payload := Type(Unit{})
		if v.Payload != nil {
			payload = v.Payload.payload(d, v.Name)
		}
		variants[i] = Variant{
			Name:     v.Name,
			Payload:  payload,
			DocLines: v.DocLines,
			Attrs:    v.Attrs,
		}
	}
	return Enum{
		Ident:    d.Ident(),
		Variants: variants,
		DocLines: d.DocLines,
		Options:  d.Options,
	}
}

func (d EnumDecl) CollectTypes(tm *TypeMap) {
	if !tm.Register(d.Ident(), d.Def()) {
		return
	}
	for _, a := range d.TypeArgs {
		a.CollectTypes(tm)
	}
	for _, v := range d.Variants {
		if v.Payload != nil {
			v.Payload.collect(tm)
		}
	}
}
