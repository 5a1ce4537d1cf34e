package types

import "strings"

// TypeIdent is the canonical identity of a type: its declared name plus the
// ordered list of concrete generic arguments. Equality and ordering are
// structural, so Container<u64> and Container<String> are distinct
// identities even though they share a declaration.
type TypeIdent struct {
	Name        string
	GenericArgs []TypeIdent
}

// Ident creates a TypeIdent with optional generic arguments.
func Ident(name string, args ...TypeIdent) TypeIdent {
	return TypeIdent{Name: name, GenericArgs: args}
}

// String renders the identity as "Name<arg, arg>".
func (id TypeIdent) String() string {
	if len(id.GenericArgs) == 0 {
		return id.Name
	}

	var b strings.Builder
	b.WriteString(id.Name)
	b.WriteByte('<')
	for i, arg := range id.GenericArgs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.String())
	}
	b.WriteByte('>')
	return b.String()
}

// Equal reports structural equality.
func (id TypeIdent) Equal(other TypeIdent) bool {
	return id.Compare(other) == 0
}

// Compare orders identities by name, then by generic argument list.
func (id TypeIdent) Compare(other TypeIdent) int {
	if c := strings.Compare(id.Name, other.Name); c != 0 {
		return c
	}
	for i := 0; i < len(id.GenericArgs) && i < len(other.GenericArgs); i++ {
		if c := id.GenericArgs[i].Compare(other.GenericArgs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(id.GenericArgs) < len(other.GenericArgs):
		return -1
	case len(id.GenericArgs) > len(other.GenericArgs):
		return 1
	default:
		return 0
	}
}
