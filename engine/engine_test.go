package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/internal/wasmbin"
	"github.com/wasmlink/wasmlink/protocol"
)

// allocatorFuncs returns the bump allocator pair every guest fixture
// carries: __wl_malloc advances a global, __wl_free is a no-op.
func allocatorFuncs() []wasmbin.Func {
	return []wasmbin.Func{
		{
			Type: wasmbin.FuncType{Params: []byte{wasmbin.I32}, Results: []byte{wasmbin.I32}},
			Body: []byte{
				wasmbin.OpGlobalGet, 0,
				wasmbin.OpGlobalGet, 0,
				wasmbin.OpLocalGet, 0,
				wasmbin.OpI32Add,
				wasmbin.OpGlobalSet, 0,
			},
		},
		{
			Type: wasmbin.FuncType{Params: []byte{wasmbin.I32, wasmbin.I32}},
			Body: nil,
		},
	}
}

func guestBinary(t *testing.T, imports []wasmbin.Import, extra []wasmbin.Func, exports []wasmbin.Export) []byte {
	t.Helper()
	mod := &wasmbin.Module{
		Imports:     imports,
		MemoryPages: 1,
		Globals:     []wasmbin.Global{{Init: 16}},
		Funcs:       append(allocatorFuncs(), extra...),
	}
	base := uint32(len(imports))
	mod.Exports = append([]wasmbin.Export{
		{Name: "memory", Kind: wasmbin.KindMemory, Index: 0},
		{Name: protocol.MallocExport, Kind: wasmbin.KindFunc, Index: base},
		{Name: protocol.FreeExport, Kind: wasmbin.KindFunc, Index: base + 1},
	}, exports...)
	return mod.Encode()
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng
}

func instantiate(t *testing.T, eng *Engine, binary []byte) wasmlink.Guest {
	t.Helper()
	mod, err := eng.Compile(context.Background(), binary)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	guest, err := mod.Instantiate(context.Background())
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	t.Cleanup(func() { _ = guest.Close(context.Background()) })
	return guest
}

func TestCallExportFlat(t *testing.T) {
	addSym := protocol.GuestExportSymbol("add")
	binary := guestBinary(t, nil,
		[]wasmbin.Func{{
			Type: wasmbin.FuncType{Params: []byte{wasmbin.I64, wasmbin.I64}, Results: []byte{wasmbin.I64}},
			Body: []byte{wasmbin.OpLocalGet, 0, wasmbin.OpLocalGet, 1, wasmbin.OpI64Add},
		}},
		[]wasmbin.Export{{Name: addSym, Kind: wasmbin.KindFunc, Index: 2}},
	)
	guest := instantiate(t, newTestEngine(t), binary)

	results, err := guest.CallExport(context.Background(), addSym, []uint64{2, 3})
	if err != nil {
		t.Fatalf("CallExport: %v", err)
	}
	if len(results) != 1 || results[0] != 5 {
		t.Errorf("add(2, 3) = %v, want [5]", results)
	}
}

func TestCallExportUnknown(t *testing.T) {
	guest := instantiate(t, newTestEngine(t), guestBinary(t, nil, nil, nil))

	_, err := guest.CallExport(context.Background(), "__wl_gen_missing", nil)
	if err == nil {
		t.Fatal("call of unknown export succeeded")
	}
	var we *errors.Error
	if !stderrors.As(err, &we) || we.Kind != errors.KindNotFound {
		t.Errorf("error = %v, want KindNotFound", err)
	}
}

func TestAllocatorAndMemory(t *testing.T) {
	guest := instantiate(t, newTestEngine(t), guestBinary(t, nil, nil, nil))

	data := []byte("hello")
	offset, err := guest.Alloc(uint32(len(data)))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := guest.Write(offset, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := guest.Read(offset, uint32(len(data)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read = %q, want %q", got, data)
	}
	if err := guest.Free(offset, uint32(len(data))); err != nil {
		t.Fatalf("Free: %v", err)
	}

	// The bump allocator advances; a second allocation must not overlap.
	second, err := guest.Alloc(8)
	if err != nil {
		t.Fatalf("second Alloc: %v", err)
	}
	if second == offset {
		t.Errorf("allocator reused offset %d", offset)
	}
}

func TestReadOutOfBounds(t *testing.T) {
	guest := instantiate(t, newTestEngine(t), guestBinary(t, nil, nil, nil))

	_, err := guest.Read(1<<20, 10)
	if err == nil {
		t.Fatal("out-of-bounds read succeeded")
	}
	var we *errors.Error
	if !stderrors.As(err, &we) || we.Kind != errors.KindOutOfBounds {
		t.Errorf("error = %v, want KindOutOfBounds", err)
	}
}

func TestHostFunctionDispatch(t *testing.T) {
	eng := newTestEngine(t)

	echoSym := protocol.HostImportSymbol("echo")
	var gotCaller wasmlink.Guest
	err := eng.BindHost(context.Background(), protocol.ImportNamespace, map[string]wasmlink.HostFuncDef{
		echoSym: {
			NumParams:  1,
			NumResults: 1,
			Fn: func(_ context.Context, caller wasmlink.Guest, stack []uint64) ([]uint64, error) {
				gotCaller = caller
				return []uint64{stack[0] + 1}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("BindHost: %v", err)
	}

	relaySym := protocol.GuestExportSymbol("relay")
	binary := guestBinary(t,
		[]wasmbin.Import{{
			Module: protocol.ImportNamespace,
			Name:   echoSym,
			Type:   wasmbin.FuncType{Params: []byte{wasmbin.I64}, Results: []byte{wasmbin.I64}},
		}},
		[]wasmbin.Func{{
			Type: wasmbin.FuncType{Params: []byte{wasmbin.I64}, Results: []byte{wasmbin.I64}},
			Body: []byte{wasmbin.OpLocalGet, 0, wasmbin.OpCall, 0},
		}},
		[]wasmbin.Export{{Name: relaySym, Kind: wasmbin.KindFunc, Index: 3}},
	)
	guest := instantiate(t, eng, binary)

	results, err := guest.CallExport(context.Background(), relaySym, []uint64{41})
	if err != nil {
		t.Fatalf("CallExport: %v", err)
	}
	if len(results) != 1 || results[0] != 42 {
		t.Errorf("relay(41) = %v, want [42]", results)
	}
	if gotCaller != guest {
		t.Errorf("host function saw caller %v, want the calling guest", gotCaller)
	}
}

func TestInstantiateWithoutAllocator(t *testing.T) {
	mod := &wasmbin.Module{
		MemoryPages: 1,
		Exports:     []wasmbin.Export{{Name: "memory", Kind: wasmbin.KindMemory, Index: 0}},
	}
	eng := newTestEngine(t)
	compiled, err := eng.Compile(context.Background(), mod.Encode())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	_, err = compiled.Instantiate(context.Background())
	if err == nil {
		t.Fatal("instantiate without allocator exports succeeded")
	}
	var we *errors.Error
	if !stderrors.As(err, &we) || we.Kind != errors.KindNotFound {
		t.Errorf("error = %v, want KindNotFound", err)
	}
}
