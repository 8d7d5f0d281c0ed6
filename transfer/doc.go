// Package transfer moves bytes between host-side sources and sinks and the
// buffers the bridge works with. It holds no state and never touches an
// engine.
//
//	buf, err := transfer.FromFile(ctx, "report.pdf")
//	h.FS().Write("/input.pdf", buf)
//	...
//	out, _ := h.FS().Read("/output.pdf")
//	err = transfer.ToHostSink(ctx, transfer.DirSink("out"), out, "report-merged.pdf")
package transfer
