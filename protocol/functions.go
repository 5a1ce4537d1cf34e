package protocol

import "github.com/wasmlink/wasmlink/types"

// Arg is one named, typed function argument.
type Arg struct {
	Name string
	Type types.TypeIdent
}

// Function describes one declared interface function. Ret is nil for
// functions returning unit.
type Function struct {
	Name     string
	Args     []Arg
	Ret      *types.TypeIdent
	IsAsync  bool
	DocLines []string
}

// FunctionList is an ordered set of functions for one direction.
type FunctionList []Function

// Get returns the function with the given declared name.
func (l FunctionList) Get(name string) (Function, bool) {
	for _, f := range l {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Names returns the declared names in declaration order.
func (l FunctionList) Names() []string {
	out := make([]string, len(l))
	for i, f := range l {
		out[i] = f.Name
	}
	return out
}

// FnBuilder assembles a function declaration fluently. The Serializable
// references are retained so the owning Protocol can seed its type map.
type FnBuilder struct {
	name  string
	args  []fnArg
	ret   types.Serializable
	async bool
	doc   []string
}

type fnArg struct {
	name string
	typ  types.Serializable
}

// Fn starts a function declaration.
func Fn(name string) *FnBuilder {
	return &FnBuilder{name: name}
}

// Arg appends a typed argument.
func (b *FnBuilder) Arg(name string, t types.Serializable) *FnBuilder {
	b.args = append(b.args, fnArg{name: name, typ: t})
	return b
}

// Ret sets the return type. Unset means unit.
func (b *FnBuilder) Ret(t types.Serializable) *FnBuilder {
	b.ret = t
	return b
}

// Async marks the function as asynchronous: calls return an opaque handle
// immediately and the result arrives through the resolver entry point.
func (b *FnBuilder) Async() *FnBuilder {
	b.async = true
	return b
}

// Doc attaches documentation lines.
func (b *FnBuilder) Doc(lines ...string) *FnBuilder {
	b.doc = append(b.doc, lines...)
	return b
}

// resolve collects argument and return types into tm and produces the
// finished Function.
func (b *FnBuilder) resolve(tm *types.TypeMap) Function {
	fn := Function{
		Name:     b.name,
		IsAsync:  b.async,
		DocLines: b.doc,
	}
	for _, a := range b.args {
		a.typ.CollectTypes(tm)
		fn.Args = append(fn.Args, Arg{Name: a.name, Type: a.typ.Ident()})
	}
	if b.ret != nil {
		b.ret.CollectTypes(tm)
		ident := b.ret.Ident()
		fn.Ret = &ident
	}
	return fn
}
