package types

import (
	stderrors "errors"
	"testing"

	"github.com/wasmlink/wasmlink/errors"
)

func TestTypeMapDedup(t *testing.T) {
	tm := NewTypeMap()

	// Registering the same generic instantiation twice yields one entry.
	ListOf(U64).CollectTypes(tm)
	ListOf(U64).CollectTypes(tm)

	if tm.Len() != 2 { // List<u64> and u64
		t.Fatalf("Len() = %d, want 2", tm.Len())
	}
	if _, ok := tm.Get(Ident("List", Ident("u64"))); !ok {
		t.Error("List<u64> missing from map")
	}
	if err := tm.Err(); err != nil {
		t.Errorf("unexpected conflict: %v", err)
	}
}

func TestTypeMapDistinctInstantiations(t *testing.T) {
	tm := NewTypeMap()
	Option(U64).CollectTypes(tm)
	Option(Str).CollectTypes(tm)

	// Option<u64>, Option<String>, u64, String
	if tm.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", tm.Len())
	}
}

func TestTypeMapConflict(t *testing.T) {
	tm := NewTypeMap()
	tm.Register(Ident("Thing"), String{})
	tm.Register(Ident("Thing"), U32)

	err := tm.Err()
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseGenerate, Kind: errors.KindConflict}) {
		t.Errorf("unexpected error: %v", err)
	}

	// First registration wins.
	ty, _ := tm.Get(Ident("Thing"))
	if _, ok := ty.(String); !ok {
		t.Errorf("definition overwritten: %T", ty)
	}
}

func TestTypeMapIdentsDeterministic(t *testing.T) {
	tm := NewTypeMap()
	MapOf(Str, U32).CollectTypes(tm)

	idents := tm.Idents()
	if len(idents) != 3 { // Map<String, u32>, String, u32
		t.Fatalf("got %d idents", len(idents))
	}
	for i := 1; i < len(idents); i++ {
		if idents[i-1].Compare(idents[i]) >= 0 {
			t.Errorf("idents out of order at %d: %s >= %s", i, idents[i-1], idents[i])
		}
	}
}
