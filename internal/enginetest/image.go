// Package enginetest builds a small engine image that speaks the bridge ABI,
// for use by tests across the module. The image behaves like a document
// engine in miniature: it reads named buffers through the bridge host module,
// reports failures through env.report_error, and returns status codes.
package enginetest

import (
	"github.com/wippyai/engine-bridge/internal/wasmbuild"
)

// Strings placed in engine memory.
const (
	Greeting        = "hello from engine"
	NotFoundMessage = "input not found"
	FailMessage     = "simulated engine failure"
)

// Files copy_file reads and writes through WASI, relative to the root preopen.
const (
	InputFile  = "input.pdf"
	OutputFile = "output.pdf"
)

const (
	greetingPtr = 16
	notFoundPtr = 64
	failPtr     = 128
	iovecPtr    = 256
	nwrittenPtr = 272
	linePtr     = 320
	inNamePtr   = 400
	outNamePtr  = 416
	fdPtr       = 432
	fileIOVPtr  = 440
	nreadPtr    = 448
	copyBufPtr  = 512
	copyBufCap  = 512
	heapBase    = 1024
	memPages    = 16
)

// WASI preview1 constants used by copy_file.
const (
	rootFD       = 3
	oflagCreat   = 1
	oflagTrunc   = 8
	rightFDRead  = 1 << 1
	rightFDWrite = 1 << 6
)

// Status codes returned by passthrough.
const (
	StatusMissingInput = -1
	StatusShortRead    = -2
	StatusWriteFailed  = -3
)

// Exports lists the operations the image offers, excluding allocator and
// lifecycle exports.
var Exports = []string{
	"add", "crash", "fail", "greeting", "halve", "initialized", "noop",
	"passthrough", "remove", "scale", "strlen", "trap", "widen", "write_greeting",
}

// Options adjust the generated image.
type Options struct {
	// ExtraImports adds function imports that nothing calls.
	ExtraImports []Import
	// NoAllocator omits malloc and free.
	NoAllocator bool
	// CabiRealloc exports cabi_realloc instead of malloc and free.
	CabiRealloc bool
	// WASI imports wasi_snapshot_preview1 and exports
	//
	//	hello_stdout() -> errno   print Greeting and a newline to stdout
	//	copy_file() -> errno      copy InputFile to OutputFile (at most 512
	//	                          bytes) with path_open, fd_read and fd_write
	WASI bool
}

// Import names a module and function. The function takes Params and
// returns nothing.
type Import struct {
	Module string
	Name   string
	Params []wasmbuild.ValType
}

// Image returns the default engine image.
func Image() []byte {
	return Build(Options{})
}

// Build returns an engine image with opts applied.
//
//	passthrough(in, out) -> i32   copy buffer in to out; 0 ok, negative on failure
//	write_greeting(out) -> i32    write Greeting to out
//	remove(path) -> i32           fs_unlink
//	add(a, b i32) -> i32
//	widen(x i64) -> i64           x + 1
//	halve(x f32) -> f32
//	scale(x, k f64) -> f64
//	strlen(s) -> i32              length of a C string
//	greeting() -> i32             pointer to Greeting as a C string
//	fail() -> i32                 reports FailMessage, returns -1
//	trap()                        executes unreachable
//	crash()                       calls env.abort
//	initialized() -> i32          1 once _initialize has run
//	noop()
func Build(opts Options) []byte {
	const (
		i32 = wasmbuild.I32
		i64 = wasmbuild.I64
		f32 = wasmbuild.F32
		f64 = wasmbuild.F64
	)
	type vt = wasmbuild.ValType
	sig := func(params []vt, results ...vt) wasmbuild.Sig {
		return wasmbuild.Sig{Params: params, Results: results}
	}

	m := wasmbuild.New()
	fsSize := m.Import("bridge", "fs_size", sig([]vt{i32}, i32))
	fsRead := m.Import("bridge", "fs_read", sig([]vt{i32, i32, i32}, i32))
	fsWrite := m.Import("bridge", "fs_write", sig([]vt{i32, i32, i32}, i32))
	fsUnlink := m.Import("bridge", "fs_unlink", sig([]vt{i32}, i32))
	reportError := m.Import("env", "report_error", sig([]vt{i32}))
	abort := m.Import("env", "abort", sig(nil))
	for _, imp := range opts.ExtraImports {
		m.Import(imp.Module, imp.Name, sig(imp.Params))
	}
	var fdWrite, fdRead, fdClose, pathOpen uint32
	if opts.WASI {
		const wasi = "wasi_snapshot_preview1"
		fdWrite = m.Import(wasi, "fd_write", sig([]vt{i32, i32, i32, i32}, i32))
		fdRead = m.Import(wasi, "fd_read", sig([]vt{i32, i32, i32, i32}, i32))
		fdClose = m.Import(wasi, "fd_close", sig([]vt{i32}, i32))
		pathOpen = m.Import(wasi, "path_open", sig([]vt{i32, i32, i32, i32, i32, i64, i64, i32, i32}, i32))
	}

	heap := m.Global(true, heapBase)
	ready := m.Global(true, 0)

	m.Memory(memPages, "memory")
	m.Data(greetingPtr, cstr(Greeting))
	m.Data(notFoundPtr, cstr(NotFoundMessage))
	m.Data(failPtr, cstr(FailMessage))
	if opts.WASI {
		line := Greeting + "\n"
		m.Data(linePtr, []byte(line))
		m.Data(iovecPtr, append(le32(linePtr), le32(uint32(len(line)))...))
		m.Data(inNamePtr, []byte(InputFile))
		m.Data(outNamePtr, []byte(OutputFile))
		m.Data(fileIOVPtr, append(le32(copyBufPtr), le32(copyBufCap)...))
	}

	// Bump allocator that grows memory on demand and never reclaims.
	allocExport := "malloc"
	if opts.NoAllocator || opts.CabiRealloc {
		allocExport = ""
	}
	malloc := m.Func(allocExport, sig([]vt{i32}, i32), []vt{i32}, func(c *wasmbuild.Code) {
		c.GlobalGet(heap).LocalSet(1).
			GlobalGet(heap).LocalGet(0).I32Add().I32Const(7).I32Add().I32Const(-8).I32And().GlobalSet(heap).
			GlobalGet(heap).MemorySize().I32Const(16).I32Shl().I32GtU().
			If().
			GlobalGet(heap).MemorySize().I32Const(16).I32Shl().I32Sub().I32Const(16).I32ShrU().I32Const(1).I32Add().
			MemoryGrow().Drop().
			End().
			LocalGet(1)
	})
	if !opts.NoAllocator && !opts.CabiRealloc {
		m.Func("free", sig([]vt{i32}), nil, nil)
	}
	if opts.CabiRealloc {
		// cabi_realloc(old, old_size, align, new_size)
		m.Func("cabi_realloc", sig([]vt{i32, i32, i32, i32}, i32), nil, func(c *wasmbuild.Code) {
			c.LocalGet(3).Call(malloc)
		})
	}

	m.Func("_initialize", sig(nil), nil, func(c *wasmbuild.Code) {
		c.I32Const(1).GlobalSet(ready)
	})
	m.Func("initialized", sig(nil, i32), nil, func(c *wasmbuild.Code) {
		c.GlobalGet(ready)
	})

	// passthrough(in, out); locals: size, buf
	m.Func("passthrough", sig([]vt{i32, i32}, i32), []vt{i32, i32}, func(c *wasmbuild.Code) {
		c.LocalGet(0).Call(fsSize).LocalTee(2).I32Const(0).I32LtS().
			If().I32Const(notFoundPtr).Call(reportError).I32Const(StatusMissingInput).Return().End().
			LocalGet(2).Call(malloc).LocalSet(3).
			LocalGet(0).LocalGet(3).LocalGet(2).Call(fsRead).LocalGet(2).I32Ne().
			If().I32Const(StatusShortRead).Return().End().
			LocalGet(1).LocalGet(3).LocalGet(2).Call(fsWrite).I32Const(0).I32LtS().
			If().I32Const(StatusWriteFailed).Return().End().
			I32Const(0)
	})
	m.Func("write_greeting", sig([]vt{i32}, i32), nil, func(c *wasmbuild.Code) {
		c.LocalGet(0).I32Const(greetingPtr).I32Const(int32(len(Greeting))).Call(fsWrite)
	})
	m.Func("remove", sig([]vt{i32}, i32), nil, func(c *wasmbuild.Code) {
		c.LocalGet(0).Call(fsUnlink)
	})

	m.Func("add", sig([]vt{i32, i32}, i32), nil, func(c *wasmbuild.Code) {
		c.LocalGet(0).LocalGet(1).I32Add()
	})
	m.Func("widen", sig([]vt{i64}, i64), nil, func(c *wasmbuild.Code) {
		c.LocalGet(0).I64Const(1).I64Add()
	})
	m.Func("halve", sig([]vt{f32}, f32), nil, func(c *wasmbuild.Code) {
		c.LocalGet(0).F32Const(0.5).F32Mul()
	})
	m.Func("scale", sig([]vt{f64, f64}, f64), nil, func(c *wasmbuild.Code) {
		c.LocalGet(0).LocalGet(1).F64Mul()
	})
	m.Func("strlen", sig([]vt{i32}, i32), []vt{i32}, func(c *wasmbuild.Code) {
		c.Block().Loop().
			LocalGet(0).LocalGet(1).I32Add().I32Load8U(0).I32Eqz().BrIf(1).
			LocalGet(1).I32Const(1).I32Add().LocalSet(1).
			Br(0).
			End().End().
			LocalGet(1)
	})
	m.Func("greeting", sig(nil, i32), nil, func(c *wasmbuild.Code) {
		c.I32Const(greetingPtr)
	})
	m.Func("fail", sig(nil, i32), nil, func(c *wasmbuild.Code) {
		c.I32Const(failPtr).Call(reportError).I32Const(-1)
	})
	m.Func("trap", sig(nil), nil, func(c *wasmbuild.Code) {
		c.Unreachable()
	})
	m.Func("crash", sig(nil), nil, func(c *wasmbuild.Code) {
		c.Call(abort)
	})
	m.Func("noop", sig(nil), nil, nil)
	if opts.WASI {
		m.Func("hello_stdout", sig(nil, i32), nil, func(c *wasmbuild.Code) {
			c.I32Const(1).I32Const(iovecPtr).I32Const(1).I32Const(nwrittenPtr).Call(fdWrite)
		})

		// copy_file; local 0 holds the last errno.
		m.Func("copy_file", sig(nil, i32), []vt{i32}, func(c *wasmbuild.Code) {
			check := func() { c.LocalTee(0).If().LocalGet(0).Return().End() }
			open := func(name string, ptr, oflags int32, rights int64) {
				c.I32Const(rootFD).I32Const(0).I32Const(ptr).I32Const(int32(len(name))).I32Const(oflags).
					I64Const(rights).I64Const(0).I32Const(0).I32Const(fdPtr).Call(pathOpen)
				check()
			}

			open(InputFile, inNamePtr, 0, rightFDRead)
			c.I32Const(fdPtr).I32Load(0).I32Const(fileIOVPtr).I32Const(1).I32Const(nreadPtr).Call(fdRead)
			check()
			c.I32Const(fdPtr).I32Load(0).Call(fdClose).Drop()
			c.I32Const(fileIOVPtr).I32Const(nreadPtr).I32Load(0).I32Store(4)

			open(OutputFile, outNamePtr, oflagCreat|oflagTrunc, rightFDWrite)
			c.I32Const(fdPtr).I32Load(0).I32Const(fileIOVPtr).I32Const(1).I32Const(nreadPtr).Call(fdWrite)
			check()
			c.I32Const(fdPtr).I32Load(0).Call(fdClose)
		})
	}

	return m.Encode()
}

// Garbage returns bytes that are not a WebAssembly module.
func Garbage() []byte {
	return []byte("%PDF-1.7 not an engine")
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}
