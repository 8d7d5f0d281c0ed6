// Package wasmbuild encodes small core WebAssembly modules from Go. It covers
// the subset needed to produce engine images for tests and examples: function
// imports, functions, mutable i32 globals, one memory and active data segments.
package wasmbuild

import "fmt"

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

const (
	funcTypeMarker = 0x60
	blockEmpty     = 0x40

	exportFunc   = 0x00
	exportMemory = 0x02
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// Sig is a function signature.
type Sig struct {
	Params  []ValType
	Results []ValType
}

// Module accumulates definitions until Encode.
type Module struct {
	memory  *memory
	types   []Sig
	imports []importFunc
	funcs   []function
	globals []global
	exports []export
	data    []segment
}

type importFunc struct {
	module, name string
	typ          uint32
}

type function struct {
	locals []ValType
	body   []byte
	typ    uint32
}

type global struct {
	typ     ValType
	mutable bool
	init    int32
}

type memory struct {
	minPages uint32
}

type export struct {
	name  string
	kind  byte
	index uint32
}

type segment struct {
	data   []byte
	offset uint32
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(s Sig) uint32 {
	for i, t := range m.types {
		if sameTypes(t.Params, s.Params) && sameTypes(t.Results, s.Results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, s)
	return uint32(len(m.types) - 1)
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Import declares a function import and returns its function index. Imports
// occupy the low indices, so they must all be declared before any Func.
func (m *Module) Import(module, name string, sig Sig) uint32 {
	if len(m.funcs) > 0 {
		panic(fmt.Sprintf("wasmbuild: import %s.%s declared after functions", module, name))
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typ: m.typeIndex(sig)})
	return uint32(len(m.imports) - 1)
}

// NextFunc returns the index the next Func call will receive.
func (m *Module) NextFunc() uint32 {
	return uint32(len(m.imports) + len(m.funcs))
}

// Func defines a function and returns its index. A non-empty export name
// exports it. Locals are indexed after the parameters. The trailing end
// instruction is added automatically.
func (m *Module) Func(exportName string, sig Sig, locals []ValType, body func(c *Code)) uint32 {
	idx := m.NextFunc()
	c := &Code{}
	if body != nil {
		body(c)
	}
	c.End()
	m.funcs = append(m.funcs, function{typ: m.typeIndex(sig), locals: locals, body: c.buf.Bytes})
	if exportName != "" {
		m.exports = append(m.exports, export{name: exportName, kind: exportFunc, index: idx})
	}
	return idx
}

// Global defines an i32 global and returns its index.
func (m *Module) Global(mutable bool, init int32) uint32 {
	m.globals = append(m.globals, global{typ: I32, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

// Memory defines the module memory. A non-empty export name exports it.
func (m *Module) Memory(minPages uint32, exportName string) {
	m.memory = &memory{minPages: minPages}
	if exportName != "" {
		m.exports = append(m.exports, export{name: exportName, kind: exportMemory, index: 0})
	}
}

// Data places b at offset in memory 0 on instantiation.
func (m *Module) Data(offset uint32, b []byte) {
	m.data = append(m.data, segment{offset: offset, data: b})
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	out := &Buffer{}
	out.WriteBytes(header)

	if len(m.types) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.types)))
		for _, t := range m.types {
			sec.AppendByte(funcTypeMarker)
			writeValTypes(sec, t.Params)
			writeValTypes(sec, t.Results)
		}
		out.writeSection(sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.WriteName(imp.module)
			sec.WriteName(imp.name)
			sec.AppendByte(exportFunc)
			sec.WriteU32(imp.typ)
		}
		out.writeSection(sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.WriteU32(f.typ)
		}
		out.writeSection(sectionFunction, sec)
	}

	if m.memory != nil {
		sec := &Buffer{}
		sec.WriteU32(1)
		sec.AppendByte(0x00) // min only
		sec.WriteU32(m.memory.minPages)
		out.writeSection(sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.AppendByte(byte(g.typ))
			if g.mutable {
				sec.AppendByte(0x01)
			} else {
				sec.AppendByte(0x00)
			}
			writeConstExpr(sec, g.init)
		}
		out.writeSection(sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.WriteName(e.name)
			sec.AppendByte(e.kind)
			sec.WriteU32(e.index)
		}
		out.writeSection(sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &Buffer{}
			writeLocals(body, f.locals)
			body.WriteBytes(f.body)
			sec.WriteU32(uint32(len(body.Bytes)))
			sec.WriteBytes(body.Bytes)
		}
		out.writeSection(sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.AppendByte(0x00) // active, memory 0
			writeConstExpr(sec, int32(d.offset))
			sec.WriteU32(uint32(len(d.data)))
			sec.WriteBytes(d.data)
		}
		out.writeSection(sectionData, sec)
	}

	return out.Bytes
}

func writeValTypes(b *Buffer, types []ValType) {
	b.WriteU32(uint32(len(types)))
	for _, t := range types {
		b.AppendByte(byte(t))
	}
}

func writeConstExpr(b *Buffer, v int32) {
	b.AppendByte(0x41)
	b.WriteI32(v)
	b.AppendByte(0x0B)
}

// writeLocals groups consecutive locals of the same type.
func writeLocals(b *Buffer, locals []ValType) {
	type group struct {
		n uint32
		t ValType
	}
	var groups []group
	for _, l := range locals {
		if n := len(groups); n > 0 && groups[n-1].t == l {
			groups[n-1].n++
			continue
		}
		groups = append(groups, group{n: 1, t: l})
	}
	b.WriteU32(uint32(len(groups)))
	for _, g := range groups {
		b.WriteU32(g.n)
		b.AppendByte(byte(g.t))
	}
}
