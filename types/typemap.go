package types

import (
	"reflect"
	"sort"

	"github.com/wasmlink/wasmlink/errors"
)

// TypeMap accumulates every type reachable from a declared interface,
// deduplicated by TypeIdent. It is populated once per generation run and
// treated as immutable afterwards.
type TypeMap struct {
	entries map[string]Type
	idents  map[string]TypeIdent
	err     *errors.Error
}

// NewTypeMap creates an empty type map.
func NewTypeMap() *TypeMap {
	return &TypeMap{
		entries: make(map[string]Type),
		idents:  make(map[string]TypeIdent),
	}
}

// Register inserts a definition for ident. The first registration wins;
// re-registering the same identity is a no-op when the definition is
// structurally identical and records a conflict otherwise, surfaced by
// Err. It reports whether the entry was newly inserted, which callers use
// to stop recursing into dependencies of already-known types.
func (m *TypeMap) Register(ident TypeIdent, ty Type) bool {
	key := ident.String()
	if existing, ok := m.entries[key]; ok {
		if m.err == nil && !reflect.DeepEqual(existing, ty) {
			m.err = errors.ConflictingType(key)
		}
		return false
	}
	m.entries[key] = ty
	m.idents[key] = ident
	return true
}

// Get returns the definition registered for ident.
func (m *TypeMap) Get(ident TypeIdent) (Type, bool) {
	ty, ok := m.entries[ident.String()]
	return ty, ok
}

// Len returns the number of registered types.
func (m *TypeMap) Len() int {
	return len(m.entries)
}

// Idents returns all registered identities in structural order, so
// emitters produce deterministic output.
func (m *TypeMap) Idents() []TypeIdent {
	out := make([]TypeIdent, 0, len(m.idents))
	for _, id := range m.idents {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// Err returns the first conflicting registration observed, if any.
// A conflict means two structurally different definitions reduced to the
// same identity, which is fatal to the generation run.
func (m *TypeMap) Err() error {
	if m.err == nil {
		return nil
	}
	return m.err
}
