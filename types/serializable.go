package types

// Serializable describes a type that can participate in the protocol: it
// knows its identity, its shape, and how to register every type it depends
// on. Declarations are explicit values, not reflection; a generic
// instantiation is a distinct Serializable with the concrete arguments
// embedded in its identity.
type Serializable interface {
	Ident() TypeIdent
	Def() Type

	// CollectTypes registers this type and, transitively, its
	// dependencies into tm. Registration happens before recursing into
	// dependencies, so recursive type definitions terminate by
	// construction, and re-registration is a no-op.
	CollectTypes(tm *TypeMap)
}

// Primitive implements Serializable so scalar types can be used directly
// in declarations (types.U32, types.Bool, ...).

func (p Primitive) Ident() TypeIdent { return Ident(p.String()) }

func (p Primitive) Def() Type { return p }

func (p Primitive) CollectTypes(tm *TypeMap) {
	tm.Register(p.Ident(), p)
}

func (String) Ident() TypeIdent { return Ident("String") }

func (s String) Def() Type { return s }

func (s String) CollectTypes(tm *TypeMap) {
	tm.Register(s.Ident(), s)
}

func (Unit) Ident() TypeIdent { return Ident("Unit") }

func (u Unit) Def() Type { return u }

func (u Unit) CollectTypes(tm *TypeMap) {
	tm.Register(u.Ident(), u)
}

// Str is the String declaration.
var Str = String{}

// Builtin container constructors. These are the fixed, well-known type
// constructors consulted before any user-declared resolution; their shapes
// are hard-coded here rather than derived from declarations.

// Option wraps inner in the optional-value container. An absent optional
// struct field is omitted from the wire representation.
func Option(inner Serializable) Serializable {
	return containerDecl{name: "Option", inner: inner}
}

// Box wraps inner in the heap-box container. Structurally transparent.
func Box(inner Serializable) Serializable {
	return containerDecl{name: "Box", inner: inner}
}

// Shared wraps inner in the shared-pointer container. Structurally
// transparent.
func Shared(inner Serializable) Serializable {
	return containerDecl{name: "Shared", inner: inner}
}

// ListOf declares a list with the given element type.
func ListOf(elem Serializable) Serializable {
	return listDecl{name: "List", elem: elem}
}

// SetOf declares a set with the given element type. Sets share the list
// wire form; uniqueness is a host/guest-side concern.
func SetOf(elem Serializable) Serializable {
	return setDecl{name: "Set", elem: elem}
}

// MapOf declares a key/value map.
func MapOf(key, value Serializable) Serializable {
	return mapDecl{name: "Map", key: key, value: value}
}

// TupleOf declares an ordered heterogeneous tuple.
func TupleOf(items ...Serializable) Serializable {
	return tupleDecl{items: items}
}

// ResultOf declares the two-variant result enum with Ok and Err payloads.
func ResultOf(ok, errT Serializable) Serializable {
	return resultDecl{ok: ok, err: errT}
}

// Ref references a type by identity without carrying its definition.
// Use it for recursive declarations (a struct containing a list of
// itself); validation fails if the referenced type is never registered.
func Ref(name string, args ...TypeIdent) Serializable {
	return refDecl{ident: Ident(name, args...)}
}

type containerDecl struct {
	inner Serializable
	name  string
}

func (d containerDecl) Ident() TypeIdent {
	return Ident(d.name, d.inner.Ident())
}

func (d containerDecl) Def() Type {
	return Container{Name: d.name, Inner: d.inner.Ident()}
}

func (d containerDecl) CollectTypes(tm *TypeMap) {
	if tm.Register(d.Ident(), d.Def()) {
		d.inner.CollectTypes(tm)
	}
}

type listDecl struct {
	elem Serializable
	name string
}

func (d listDecl) Ident() TypeIdent {
	return Ident(d.name, d.elem.Ident())
}

func (d listDecl) Def() Type {
	return List{Name: d.name, Elem: d.elem.Ident()}
}

func (d listDecl) CollectTypes(tm *TypeMap) {
	if tm.Register(d.Ident(), d.Def()) {
		d.elem.CollectTypes(tm)
	}
}

type setDecl struct {
	elem Serializable
	name string
}

func (d setDecl) Ident() TypeIdent {
	return Ident(d.name, d.elem.Ident())
}

func (d setDecl) Def() Type {
	return Set{Name: d.name, Elem: d.elem.Ident()}
}

func (d setDecl) CollectTypes(tm *TypeMap) {
	if tm.Register(d.Ident(), d.Def()) {
		d.elem.CollectTypes(tm)
	}
}

type mapDecl struct {
	key   Serializable
	value Serializable
	name  string
}

func (d mapDecl) Ident() TypeIdent {
	return Ident(d.name, d.key.Ident(), d.value.Ident())
}

func (d mapDecl) Def() Type {
	return Map{Name: d.name, Key: d.key.Ident(), Value: d.value.Ident()}
}

func (d mapDecl) CollectTypes(tm *TypeMap) {
	if tm.Register(d.Ident(), d.Def()) {
		d.key.CollectTypes(tm)
		d.value.CollectTypes(tm)
	}
}

type tupleDecl struct {
	items []Serializable
}

func (d tupleDecl) Ident() TypeIdent {
	args := make([]TypeIdent, len(d.items))
	for i, it := range d.items {
		args[i] = it.Ident()
	}
	return Ident("Tuple", args...)
}

func (d tupleDecl) Def() Type {
	items := make([]TypeIdent, len(d.items))
	for i, it := range d.items {
		items[i] = it.Ident()
	}
	return Tuple{Items: items}
}

func (d tupleDecl) CollectTypes(tm *TypeMap) {
	if tm.Register(d.Ident(), d.Def()) {
		for _, it := range d.items {
			it.CollectTypes(tm)
		}
	}
}

type resultDecl struct {
	ok  Serializable
	err Serializable
}

func (d resultDecl) Ident() TypeIdent {
	return Ident("Result", d.ok.Ident(), d.err.Ident())
}

func (d resultDecl) Def() Type {
	return Enum{
		Ident: d.Ident(),
		Variants: []Variant{
			{
				Name:     "Ok",
				Payload:  Tuple{Items: []TypeIdent{d.ok.Ident()}},
				DocLines: []string{"Represents a successful result."},
			},
			{
				Name:     "Err",
				Payload:  Tuple{Items: []TypeIdent{d.err.Ident()}},
				DocLines: []string{"Represents an error."},
			},
		},
		DocLines: []string{"A result that is either successful (Ok) or an error (Err)."},
	}
}

func (d resultDecl) CollectTypes(tm *TypeMap) {
	if tm.Register(d.Ident(), d.Def()) {
		d.ok.CollectTypes(tm)
		d.err.CollectTypes(tm)
	}
}

type refDecl struct {
	ident TypeIdent
}

func (d refDecl) Ident() TypeIdent { return d.ident }

// Def returns nil: a reference carries no definition. The definition must
// be registered by the declaration it points at.
func (d refDecl) Def() Type { return nil }

func (d refDecl) CollectTypes(*TypeMap) {}
