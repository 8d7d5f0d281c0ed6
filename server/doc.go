// Package server exposes an engine over HTTP.
//
// Routes:
//
//	GET  /healthz                liveness, with the loader state
//	GET  /readyz                 200 once the engine is ready
//	GET  /v1/capabilities        exported operations and their signatures
//	POST /v1/ops/{name}          invoke an operation
//	GET  /metrics                Prometheus metrics
//
// An operation request is either JSON or multipart/form-data. Both carry
// "args", a JSON array of invoke.ArgSpec, and "result", a result kind name.
// In multipart requests each uploaded file is staged in the engine's
// namespace under a fresh path, and an argument value "@field" refers to the
// file uploaded as form field "field". An output argument with value "@"
// gets a fresh path. When the call leaves exactly one output buffer it is
// returned as a download; otherwise the response is JSON.
//
// Calls are serialized: each request holds the engine from staging its
// uploads until its outputs are read back.
package server
