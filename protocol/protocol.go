package protocol

import (
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/types"
)

// Protocol is the complete declared interface: both function directions
// plus the type map seeded from every signature. Build it once, Validate,
// then hand it to an emitter or the runtime.
type Protocol struct {
	name    string
	types   *types.TypeMap
	exports FunctionList
	imports FunctionList
}

// New creates an empty protocol. The builtin GuestError type is always
// registered so boundary deserialization failures can be exchanged.
func New(name string) *Protocol {
	p := &Protocol{
		name:  name,
		types: types.NewTypeMap(),
	}
	GuestErrorDecl().CollectTypes(p.types)
	return p
}

// Name returns the protocol name.
func (p *Protocol) Name() string { return p.name }

// Export declares a function the host calls into the guest.
func (p *Protocol) Export(b *FnBuilder) *Protocol {
	p.exports = append(p.exports, b.resolve(p.types))
	return p
}

// Import declares a function the guest calls into the host.
func (p *Protocol) Import(b *FnBuilder) *Protocol {
	p.imports = append(p.imports, b.resolve(p.types))
	return p
}

// RegisterType registers a type that is not reachable from any signature
// but must still be part of the generated bindings.
func (p *Protocol) RegisterType(s types.Serializable) *Protocol {
	s.CollectTypes(p.types)
	return p
}

// Exports returns the host-to-guest function list.
func (p *Protocol) Exports() FunctionList { return p.exports }

// Imports returns the guest-to-host function list.
func (p *Protocol) Imports() FunctionList { return p.imports }

// Types returns the accumulated type map.
func (p *Protocol) Types() *types.TypeMap { return p.types }

// Validate checks that the protocol is generatable: no conflicting type
// identities, no dangling type references, and no malformed attribute
// combinations. Any failure is fatal to the generation run; there is no
// partial output.
func (p *Protocol) Validate() error {
	if err := p.types.Err(); err != nil {
		return err
	}

	for _, ident := range p.types.Idents() {
		ty, _ := p.types.Get(ident)
		if err := p.validateType(ident, ty); err != nil {
			return err
		}
	}

	for _, dir := range []FunctionList{p.exports, p.imports} {
		for _, fn := range dir {
			for _, arg := range fn.Args {
				if err := p.requireResolved(arg.Type); err != nil {
					return err
				}
			}
			if fn.Ret != nil {
				if err := p.requireResolved(*fn.Ret); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (p *Protocol) requireResolved(ident types.TypeIdent) error {
	if _, ok := p.types.Get(ident); !ok {
		return errors.UnresolvedType(ident.String())
	}
	return nil
}

func (p *Protocol) validateType(ident types.TypeIdent, ty types.Type) error {
	switch t := ty.(type) {
	case types.Tuple:
		for _, item := range t.Items {
			if err := p.requireResolved(item); err != nil {
				return err
			}
		}
	case types.List:
		return p.requireResolved(t.Elem)
	case types.Set:
		return p.requireResolved(t.Elem)
	case types.Map:
		if err := p.requireResolved(t.Key); err != nil {
			return err
		}
		return p.requireResolved(t.Value)
	case types.Container:
		return p.requireResolved(t.Inner)
	case types.Struct:
		return p.validateStruct(ident, t)
	case types.Enum:
		return p.validateEnum(ident, t)
	}
	return nil
}

func (p *Protocol) validateStruct(ident types.TypeIdent, s types.Struct) error {
	for _, f := range s.Fields {
		if err := p.requireResolved(f.Type); err != nil {
			return err
		}
		if f.Attrs.Flatten {
			target, _ := p.types.Get(f.Type)
			switch target.(type) {
			case types.Struct, types.Map:
				// legal
			default:
				return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
					Type(ident.String()).
					Path(f.Name).
					Detail("flatten requires a struct or map field, got %s", f.Type).
					Build()
			}
		}
	}
	return nil
}

func (p *Protocol) validateEnum(ident types.TypeIdent, e types.Enum) error {
	internal := e.Options.Tagging() == types.Internal
	for _, v := range e.Variants {
		switch payload := v.Payload.(type) {
		case types.Unit:
			// always legal
		case types.Tuple:
			if internal {
				return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
					Type(ident.String()).
					Path(v.Name).
					Detail("internal tagging cannot represent tuple payloads").
					Build()
			}
			for _, item := range payload.Items {
				if err := p.requireResolved(item); err != nil {
					return err
				}
			}
		case types.Struct:
			if err := p.validateStruct(ident, payload); err != nil {
				return err
			}
		default:
			return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
				Type(ident.String()).
				Path(v.Name).
				Detail("variant payload must be unit, tuple or struct").
				Build()
		}
	}
	return nil
}
