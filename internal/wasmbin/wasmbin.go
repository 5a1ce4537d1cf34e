// Package wasmbin builds small core wasm binaries in memory. It exists
// so engine tests can synthesize guests with exact export tables instead
// of checking binary fixtures into the repo. Only the sections those
// fixtures need are supported.
package wasmbin

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

// Opcodes used by fixture bodies.
const (
	OpLocalGet  byte = 0x20
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
	OpCall      byte = 0x10
	OpI32Const  byte = 0x41
	OpI32Add    byte = 0x6a
	OpI64Add    byte = 0x7c
	OpEnd       byte = 0x0b
)

// Export kinds.
const (
	KindFunc   byte = 0x00
	KindMemory byte = 0x02
)

// FuncType is a function signature.
type FuncType struct {
	Params  []byte
	Results []byte
}

// Import is an imported function. Imports occupy the low function
// indices, in declaration order.
type Import struct {
	Module string
	Name   string
	Type   FuncType
}

// Func is a defined function. Body is the raw instruction stream without
// the trailing end opcode.
type Func struct {
	Type FuncType
	Body []byte
}

// Global is a mutable i32 global with a constant initializer.
type Global struct {
	Init int32
}

// Export names a function (by absolute index, imports included) or the
// module's memory.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Module is the buildable subset: imported and defined functions, one
// optional memory, mutable i32 globals and exports.
type Module struct {
	Imports     []Import
	Funcs       []Func
	MemoryPages uint32
	Globals     []Global
	Exports     []Export
}

const (
	secType     byte = 1
	secImport   byte = 2
	secFunction byte = 3
	secMemory   byte = 5
	secGlobal   byte = 6
	secExport   byte = 7
	secCode     byte = 10
)

// Encode produces the binary. One type entry is emitted per function;
// deduplication is not worth it at fixture scale.
func (m *Module) Encode() []byte {
	w := &writer{}
	w.raw([]byte{0x00, 0x61, 0x73, 0x6d}) // magic
	w.raw([]byte{0x01, 0x00, 0x00, 0x00}) // version

	// Type section: imports first, then defined functions.
	types := &writer{}
	types.u32(uint32(len(m.Imports) + len(m.Funcs)))
	for _, imp := range m.Imports {
		writeFuncType(types, imp.Type)
	}
	for _, fn := range m.Funcs {
		writeFuncType(types, fn.Type)
	}
	w.section(secType, types)

	if len(m.Imports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Imports)))
		for idx, imp := range m.Imports {
			sec.name(imp.Module)
			sec.name(imp.Name)
			sec.byte(KindFunc)
			sec.u32(uint32(idx))
		}
		w.section(secImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Funcs)))
		for idx := range m.Funcs {
			sec.u32(uint32(len(m.Imports) + idx))
		}
		w.section(secFunction, sec)
	}

	if m.MemoryPages > 0 {
		sec := &writer{}
		sec.u32(1)
		sec.byte(0x00) // min only
		sec.u32(m.MemoryPages)
		w.section(secMemory, sec)
	}

	if len(m.Globals) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			sec.byte(I32)
			sec.byte(0x01) // mutable
			sec.byte(OpI32Const)
			sec.i32(g.Init)
			sec.byte(OpEnd)
		}
		w.section(secGlobal, sec)
	}

	if len(m.Exports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Exports)))
		for _, ex := range m.Exports {
			sec.name(ex.Name)
			sec.byte(ex.Kind)
			sec.u32(ex.Index)
		}
		w.section(secExport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.Funcs)))
		for _, fn := range m.Funcs {
			body := &writer{}
			body.u32(0) // no locals
			body.raw(fn.Body)
			body.byte(OpEnd)
			sec.u32(uint32(len(body.buf)))
			sec.raw(body.buf)
		}
		w.section(secCode, sec)
	}

	return w.buf
}

func writeFuncType(w *writer, ft FuncType) {
	w.byte(0x60)
	w.u32(uint32(len(ft.Params)))
	w.raw(ft.Params)
	w.u32(uint32(len(ft.Results)))
	w.raw(ft.Results)
}

type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

// u32 writes an unsigned LEB128 value.
func (w *writer) u32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if v == 0 {
			return
		}
	}
}

// i32 writes a signed LEB128 value.
func (w *writer) i32(v int32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if done {
			return
		}
	}
}

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.raw([]byte(s))
}

func (w *writer) section(id byte, body *writer) {
	w.byte(id)
	w.u32(uint32(len(body.buf)))
	w.raw(body.buf)
}
