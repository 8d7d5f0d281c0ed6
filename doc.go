// Package enginebridge lets a Go host drive an opaque, pre-compiled
// WebAssembly processing engine (for example a PDF library built with
// emscripten or wasi-sdk) without linking native code.
//
// The engine owns all document semantics. This module owns the boundary:
// loading the engine once per process, exchanging byte buffers with it
// through a sandboxed virtual filesystem, and invoking its exports with typed
// arguments while turning engine failures into host errors.
//
// # Architecture Overview
//
//	enginebridge/        Root package with the guest Memory and Allocator interfaces
//	├── vfs/             Virtual filesystem bridge (flat, in-memory, per engine)
//	├── engine/          wazero bootstrap, host imports, capability table
//	├── loader/          At-most-once lifecycle-guarded initialization
//	├── invoke/          Typed request marshaling and outcome normalization
//	├── transfer/        Host sources and sinks for binary buffers
//	├── errors/          Phase-tagged error taxonomy
//	├── config/          YAML and environment configuration
//	├── server/          HTTP host service around a loaded engine
//	├── internal/        Engine memory adapters, test engine images
//	└── cmd/enginebridge CLI: exports, invoke, serve
//
// # Quick Start
//
//	err := loader.Configure(loader.FromConfig(engine.Config{
//	    Source: engine.FileSource("PDFWriter.wasm"),
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h, err := loader.Initialize(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	input, err := transfer.FromFile(ctx, "in.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.FS().Write("/input.pdf", input); err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = invoke.Invoke(ctx, h, invoke.NewRequest("process_pdf", invoke.Status,
//	    invoke.Input("/input.pdf"), invoke.Output("/output.pdf")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, _ := h.FS().Read("/output.pdf")
//
// # Engine ABI
//
// Engines import host functions from the "bridge" module to reach the
// virtual filesystem (fs_size, fs_read, fs_write, fs_unlink) and may import
// env.report_error and env.abort to surface failures. Emscripten builds also
// get the env runtime functions (memory growth notice, longjmp and invoke_*
// trampolines). Strings cross the boundary as NUL-terminated pointers into
// engine memory, allocated through the engine's exported malloc/free. WASI
// builds additionally see the bridge namespace as a writable preopen at "/";
// a file the engine writes is stored when it is closed.
//
// # Thread Safety
//
// The loader is safe for concurrent use. A Handle and its filesystem are
// meant to be driven by one caller at a time; use invoke.Serial when several
// goroutines share one engine.
package enginebridge
