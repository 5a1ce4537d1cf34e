package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wasmlink/wasmlink"
	"github.com/wasmlink/wasmlink/codec"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/protocol"
	"github.com/wasmlink/wasmlink/types"
)

// fakeEngine captures the bound host functions and hands out a prepared
// guest, so call semantics can be tested without a wasm binary.
type fakeEngine struct {
	hostFuncs map[string]wasmlink.HostFuncDef
	guest     *fakeGuest
}

func (e *fakeEngine) BindHost(_ context.Context, _ string, funcs map[string]wasmlink.HostFuncDef) error {
	e.hostFuncs = funcs
	return nil
}

func (e *fakeEngine) Compile(context.Context, []byte) (CompiledModule, error) {
	return &fakeModule{guest: e.guest}, nil
}

func (e *fakeEngine) Close(context.Context) error { return nil }

type fakeModule struct {
	guest *fakeGuest
}

func (m *fakeModule) Instantiate(context.Context) (wasmlink.Guest, error) { return m.guest, nil }
func (m *fakeModule) Close(context.Context) error                        { return nil }

// fakeGuest is an in-process guest with a strict allocator: every region
// must be freed exactly once at its allocated size.
type fakeGuest struct {
	mu      sync.Mutex
	regions map[uint32][]byte
	next    uint32
	exports map[string]func(ctx context.Context, args []uint64) ([]uint64, error)
}

func newFakeGuest() *fakeGuest {
	return &fakeGuest{
		regions: make(map[uint32][]byte),
		next:    16,
		exports: make(map[string]func(ctx context.Context, args []uint64) ([]uint64, error)),
	}
}

func (g *fakeGuest) Alloc(size uint32) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	offset := g.next
	g.next += size + 8
	g.regions[offset] = make([]byte, size)
	return offset, nil
}

func (g *fakeGuest) Free(offset, size uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	region, ok := g.regions[offset]
	if !ok {
		return fmt.Errorf("free of unallocated offset %d", offset)
	}
	if uint32(len(region)) != size {
		return fmt.Errorf("free size %d, allocated %d", size, len(region))
	}
	delete(g.regions, offset)
	return nil
}

func (g *fakeGuest) Read(offset, length uint32) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	region, ok := g.regions[offset]
	if !ok || uint32(len(region)) != length {
		return nil, fmt.Errorf("read of invalid region %d+%d", offset, length)
	}
	out := make([]byte, length)
	copy(out, region)
	return out, nil
}

func (g *fakeGuest) Write(offset uint32, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	region, ok := g.regions[offset]
	if !ok || len(region) < len(data) {
		return fmt.Errorf("write outside region at %d", offset)
	}
	copy(region, data)
	return nil
}

func (g *fakeGuest) CallExport(ctx context.Context, name string, args []uint64) ([]uint64, error) {
	g.mu.Lock()
	fn, ok := g.exports[name]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no export %q", name)
	}
	return fn(ctx, args)
}

func (g *fakeGuest) Close(context.Context) error { return nil }

// outstanding reports live allocations; zero means balanced memory.
func (g *fakeGuest) outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.regions)
}

// put serializes a value for ident and writes it into guest memory,
// simulating a guest-produced buffer.
func (g *fakeGuest) put(t *testing.T, p *protocol.Protocol, ident types.TypeIdent, v any) wasmlink.FatPtr {
	t.Helper()
	data, err := codec.Msgpack{}.Serialize(p.Types(), ident, v)
	if err != nil {
		t.Fatalf("serialize fixture: %v", err)
	}
	offset, err := g.Alloc(uint32(len(data)))
	if err != nil {
		t.Fatalf("alloc fixture: %v", err)
	}
	if err := g.Write(offset, data); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return wasmlink.NewFatPtr(offset, uint32(len(data)))
}

// take reads and frees a host-written buffer, as a real guest would.
func (g *fakeGuest) take(t *testing.T, p *protocol.Protocol, ident types.TypeIdent, fat wasmlink.FatPtr) any {
	t.Helper()
	data, err := g.Read(fat.Offset(), fat.Len())
	if err != nil {
		t.Fatalf("read arg: %v", err)
	}
	if err := g.Free(fat.Offset(), fat.Len()); err != nil {
		t.Fatalf("free arg: %v", err)
	}
	v, err := codec.Msgpack{}.Deserialize(p.Types(), ident, data)
	if err != nil {
		t.Fatalf("deserialize arg: %v", err)
	}
	return v
}

func newTestRuntime(t *testing.T, p *protocol.Protocol, g *fakeGuest) (*Runtime, *fakeEngine, *Instance) {
	t.Helper()
	eng := &fakeEngine{guest: g}
	rt, err := New(context.Background(), WithProtocol(p), WithEngine(eng))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mod, err := rt.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inst, err := mod.Instantiate(context.Background())
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return rt, eng, inst
}

func kindOf(t *testing.T, err error) errors.Kind {
	t.Helper()
	var we *errors.Error
	if !stderrors.As(err, &we) {
		t.Fatalf("error %v is not structured", err)
	}
	return we.Kind
}

func TestCallSyncPrimitives(t *testing.T) {
	p := protocol.New("calc").
		Export(protocol.Fn("add").Arg("a", types.U32).Arg("b", types.U32).Ret(types.U32))
	g := newFakeGuest()
	g.exports[protocol.GuestExportSymbol("add")] = func(_ context.Context, args []uint64) ([]uint64, error) {
		return []uint64{args[0] + args[1]}, nil
	}
	_, _, inst := newTestRuntime(t, p, g)

	got, err := inst.Call(context.Background(), "add", 2, 3)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != uint32(5) {
		t.Errorf("add(2, 3) = %#v, want uint32(5)", got)
	}
	if n := g.outstanding(); n != 0 {
		t.Errorf("outstanding allocations = %d, want 0", n)
	}
}

func TestCallSyncSerialized(t *testing.T) {
	p := protocol.New("greeter").
		Export(protocol.Fn("greet").Arg("name", types.Str).Ret(types.Str))
	g := newFakeGuest()
	g.exports[protocol.GuestExportSymbol("greet")] = func(_ context.Context, args []uint64) ([]uint64, error) {
		name := g.take(t, p, types.Str.Ident(), wasmlink.FatPtr(args[0])).(string)
		out := g.put(t, p, types.Str.Ident(), "Hello, "+name)
		return []uint64{uint64(out)}, nil
	}
	_, _, inst := newTestRuntime(t, p, g)

	got, err := inst.Call(context.Background(), "greet", "Ada")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "Hello, Ada" {
		t.Errorf("greet = %#v, want \"Hello, Ada\"", got)
	}
	if n := g.outstanding(); n != 0 {
		t.Errorf("outstanding allocations = %d, want 0", n)
	}
}

func TestCallUnknownExport(t *testing.T) {
	p := protocol.New("empty")
	_, _, inst := newTestRuntime(t, p, newFakeGuest())

	_, err := inst.Call(context.Background(), "missing")
	if err == nil {
		t.Fatal("Call of undeclared function succeeded")
	}
	if kind := kindOf(t, err); kind != errors.KindNotFound {
		t.Errorf("error kind = %v, want KindNotFound", kind)
	}
}

func TestCallArgumentCountMismatch(t *testing.T) {
	p := protocol.New("calc").
		Export(protocol.Fn("add").Arg("a", types.U32).Arg("b", types.U32).Ret(types.U32))
	_, _, inst := newTestRuntime(t, p, newFakeGuest())

	_, err := inst.Call(context.Background(), "add", 1)
	if err == nil {
		t.Fatal("Call with wrong arity succeeded")
	}
	if kind := kindOf(t, err); kind != errors.KindInvalidInput {
		t.Errorf("error kind = %v, want KindInvalidInput", kind)
	}
}

// resolveEventually drives the host resolver until the waiter is
// registered, re-creating the result buffer for each attempt since the
// resolver consumes it.
func resolveEventually(t *testing.T, eng *fakeEngine, g *fakeGuest, p *protocol.Protocol, handle uint64, v any) {
	t.Helper()
	resolver := eng.hostFuncs[protocol.HostResolveImport].Fn
	deadline := time.Now().Add(2 * time.Second)
	for {
		fat := g.put(t, p, types.Str.Ident(), v)
		_, err := resolver(context.Background(), g, []uint64{handle, uint64(fat)})
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("resolve handle %d: %v", handle, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestCallAsyncExport(t *testing.T) {
	p := protocol.New("fetcher").
		Export(protocol.Fn("fetch").Arg("id", types.U64).Ret(types.Str).Async())
	g := newFakeGuest()
	g.exports[protocol.GuestExportSymbol("fetch")] = func(_ context.Context, args []uint64) ([]uint64, error) {
		// Handle assigned by the callee; reuse the id for determinism.
		return []uint64{args[0]}, nil
	}
	_, eng, inst := newTestRuntime(t, p, g)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resolveEventually(t, eng, g, p, 7, "payload-7")
	}()

	got, err := inst.Call(context.Background(), "fetch", uint64(7))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "payload-7" {
		t.Errorf("fetch = %#v, want \"payload-7\"", got)
	}
	<-done
	if n := g.outstanding(); n != 0 {
		t.Errorf("outstanding allocations = %d, want 0", n)
	}
}

func TestConcurrentAsyncExportsResolvedInReverse(t *testing.T) {
	const n = 8
	p := protocol.New("fetcher").
		Export(protocol.Fn("fetch").Arg("id", types.U64).Ret(types.Str).Async())
	g := newFakeGuest()
	g.exports[protocol.GuestExportSymbol("fetch")] = func(_ context.Context, args []uint64) ([]uint64, error) {
		return []uint64{args[0]}, nil
	}
	_, eng, inst := newTestRuntime(t, p, g)

	go func() {
		for id := uint64(n); id >= 1; id-- {
			resolveEventually(t, eng, g, p, id, fmt.Sprintf("result-%d", id))
		}
	}()

	var eg errgroup.Group
	for i := 1; i <= n; i++ {
		id := uint64(i)
		eg.Go(func() error {
			got, err := inst.Call(context.Background(), "fetch", id)
			if err != nil {
				return err
			}
			if want := fmt.Sprintf("result-%d", id); got != want {
				return fmt.Errorf("fetch(%d) = %#v, want %q", id, got, want)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if out := g.outstanding(); out != 0 {
		t.Errorf("outstanding allocations = %d, want 0", out)
	}
}

func TestResolveUnknownHandle(t *testing.T) {
	p := protocol.New("fetcher").
		Export(protocol.Fn("fetch").Ret(types.Str).Async())
	g := newFakeGuest()
	_, eng, _ := newTestRuntime(t, p, g)

	fat := g.put(t, p, types.Str.Ident(), "orphan")
	_, err := eng.hostFuncs[protocol.HostResolveImport].Fn(context.Background(), g, []uint64{99, uint64(fat)})
	if err == nil {
		t.Fatal("resolving unknown handle succeeded")
	}
	if kind := kindOf(t, err); kind != errors.KindInvalidHandle {
		t.Errorf("error kind = %v, want KindInvalidHandle", kind)
	}
}

func TestDoubleResolveRejected(t *testing.T) {
	p := protocol.New("fetcher").
		Export(protocol.Fn("fetch").Arg("id", types.U64).Ret(types.Str).Async())
	g := newFakeGuest()
	g.exports[protocol.GuestExportSymbol("fetch")] = func(_ context.Context, args []uint64) ([]uint64, error) {
		return []uint64{args[0]}, nil
	}
	_, eng, inst := newTestRuntime(t, p, g)

	go resolveEventually(t, eng, g, p, 3, "first")
	if _, err := inst.Call(context.Background(), "fetch", uint64(3)); err != nil {
		t.Fatalf("Call: %v", err)
	}

	fat := g.put(t, p, types.Str.Ident(), "second")
	_, err := eng.hostFuncs[protocol.HostResolveImport].Fn(context.Background(), g, []uint64{3, uint64(fat)})
	if err == nil {
		t.Fatal("second resolve succeeded")
	}
	if kind := kindOf(t, err); kind != errors.KindInvalidHandle {
		t.Errorf("error kind = %v, want KindInvalidHandle", kind)
	}
}

func TestAsyncCallContextCancelled(t *testing.T) {
	p := protocol.New("fetcher").
		Export(protocol.Fn("fetch").Ret(types.Str).Async())
	g := newFakeGuest()
	g.exports[protocol.GuestExportSymbol("fetch")] = func(context.Context, []uint64) ([]uint64, error) {
		return []uint64{1}, nil
	}
	_, _, inst := newTestRuntime(t, p, g)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := inst.Call(ctx, "fetch")
	if err == nil {
		t.Fatal("Call survived context cancellation")
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error %v does not wrap DeadlineExceeded", err)
	}
}

func TestSyncImport(t *testing.T) {
	p := protocol.New("logger").
		Export(protocol.Fn("emit").Arg("msg", types.Str)).
		Import(protocol.Fn("log").Arg("msg", types.Str))
	g := newFakeGuest()
	rt, eng, inst := newTestRuntime(t, p, g)

	var logged []string
	if err := rt.RegisterImport("log", func(_ context.Context, args []any) (any, error) {
		logged = append(logged, args[0].(string))
		return nil, nil
	}); err != nil {
		t.Fatalf("RegisterImport: %v", err)
	}

	g.exports[protocol.GuestExportSymbol("emit")] = func(ctx context.Context, args []uint64) ([]uint64, error) {
		msg := g.take(t, p, types.Str.Ident(), wasmlink.FatPtr(args[0])).(string)
		fat := g.put(t, p, types.Str.Ident(), msg)
		return eng.hostFuncs[protocol.HostImportSymbol("log")].Fn(ctx, g, []uint64{uint64(fat)})
	}

	if _, err := inst.Call(context.Background(), "emit", "hello"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(logged) != 1 || logged[0] != "hello" {
		t.Errorf("logged = %v, want [hello]", logged)
	}
	if n := g.outstanding(); n != 0 {
		t.Errorf("outstanding allocations = %d, want 0", n)
	}
}

func TestSyncImportFlatReturn(t *testing.T) {
	p := protocol.New("dice").
		Export(protocol.Fn("roll").Ret(types.U32)).
		Import(protocol.Fn("rand").Ret(types.U32))
	g := newFakeGuest()
	rt, eng, inst := newTestRuntime(t, p, g)

	if err := rt.RegisterImport("rand", func(context.Context, []any) (any, error) {
		return uint32(99), nil
	}); err != nil {
		t.Fatalf("RegisterImport: %v", err)
	}

	g.exports[protocol.GuestExportSymbol("roll")] = func(ctx context.Context, _ []uint64) ([]uint64, error) {
		return eng.hostFuncs[protocol.HostImportSymbol("rand")].Fn(ctx, g, nil)
	}

	got, err := inst.Call(context.Background(), "roll")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != uint32(99) {
		t.Errorf("roll = %#v, want uint32(99)", got)
	}
}

func TestAsyncImport(t *testing.T) {
	p := protocol.New("fetcher").
		Export(protocol.Fn("run").Arg("url", types.Str).Ret(types.U64)).
		Import(protocol.Fn("fetch_data").Arg("url", types.Str).Ret(types.Str).Async())
	g := newFakeGuest()
	rt, eng, inst := newTestRuntime(t, p, g)

	if err := rt.RegisterImport("fetch_data", func(_ context.Context, args []any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return "payload:" + args[0].(string), nil
	}); err != nil {
		t.Fatalf("RegisterImport: %v", err)
	}

	var resolvedMu sync.Mutex
	resolved := make(map[uint64]string)
	g.exports[protocol.GuestResolveExport] = func(_ context.Context, args []uint64) ([]uint64, error) {
		v := g.take(t, p, types.Str.Ident(), wasmlink.FatPtr(args[1])).(string)
		resolvedMu.Lock()
		resolved[args[0]] = v
		resolvedMu.Unlock()
		return nil, nil
	}
	g.exports[protocol.GuestExportSymbol("run")] = func(ctx context.Context, args []uint64) ([]uint64, error) {
		url := g.take(t, p, types.Str.Ident(), wasmlink.FatPtr(args[0])).(string)
		fat := g.put(t, p, types.Str.Ident(), url)
		results, err := eng.hostFuncs[protocol.HostImportSymbol("fetch_data")].Fn(ctx, g, []uint64{uint64(fat)})
		if err != nil {
			return nil, err
		}
		return results, nil // the handle
	}

	handle, err := inst.Call(context.Background(), "run", "https://example.com")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		resolvedMu.Lock()
		v, ok := resolved[handle.(uint64)]
		resolvedMu.Unlock()
		if ok {
			if v != "payload:https://example.com" {
				t.Errorf("resolved value = %q", v)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("async import never resolved")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := g.outstanding(); n != 0 {
		t.Errorf("outstanding allocations = %d, want 0", n)
	}
}

func TestRegisterImportUndeclared(t *testing.T) {
	p := protocol.New("empty")
	rt, _, _ := newTestRuntime(t, p, newFakeGuest())

	err := rt.RegisterImport("ghost", func(context.Context, []any) (any, error) { return nil, nil })
	if err == nil {
		t.Fatal("registering undeclared import succeeded")
	}
	if kind := kindOf(t, err); kind != errors.KindNotFound {
		t.Errorf("error kind = %v, want KindNotFound", kind)
	}
}

func TestRegisterImportDuplicate(t *testing.T) {
	p := protocol.New("logger").
		Import(protocol.Fn("log").Arg("msg", types.Str))
	rt, _, _ := newTestRuntime(t, p, newFakeGuest())

	h := func(context.Context, []any) (any, error) { return nil, nil }
	if err := rt.RegisterImport("log", h); err != nil {
		t.Fatalf("first RegisterImport: %v", err)
	}
	err := rt.RegisterImport("log", h)
	if err == nil {
		t.Fatal("duplicate RegisterImport succeeded")
	}
	if kind := kindOf(t, err); kind != errors.KindConflict {
		t.Errorf("error kind = %v, want KindConflict", kind)
	}
}

func TestCallAfterClose(t *testing.T) {
	p := protocol.New("calc").
		Export(protocol.Fn("add").Arg("a", types.U32).Arg("b", types.U32).Ret(types.U32))
	_, _, inst := newTestRuntime(t, p, newFakeGuest())

	if err := inst.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := inst.Call(context.Background(), "add", 1, 2)
	if err == nil {
		t.Fatal("Call on closed instance succeeded")
	}
	if kind := kindOf(t, err); kind != errors.KindNotInitialized {
		t.Errorf("error kind = %v, want KindNotInitialized", kind)
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	p := protocol.New("fetcher").
		Export(protocol.Fn("fetch").Ret(types.Str).Async())
	g := newFakeGuest()
	g.exports[protocol.GuestExportSymbol("fetch")] = func(context.Context, []uint64) ([]uint64, error) {
		return []uint64{1}, nil
	}
	_, _, inst := newTestRuntime(t, p, g)

	errCh := make(chan error, 1)
	go func() {
		_, err := inst.Call(context.Background(), "fetch")
		errCh <- err
	}()

	// Wait for the waiter to register before closing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		inst.pending.mu.Lock()
		waiting := len(inst.pending.waiters)
		inst.pending.mu.Unlock()
		if waiting == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("async call never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := inst.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-errCh; err == nil {
		t.Fatal("pending call survived Close")
	}
}
