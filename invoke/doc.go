// Package invoke calls engine operations with typed arguments.
//
// A Request names an export, lists its arguments and says how to read the
// result. Invoke looks the name up in the handle's capability table, marshals
// each argument by one fixed rule per kind, calls the export and normalizes
// whatever happens into an Outcome or a typed error:
//
//	I32, I64, F32, F64   scalar, passed by value; must match the parameter type
//	Text                 NUL-terminated string copied into engine memory
//	Input, Output        virtual path, passed like Text; Input must exist
//	Bytes                buffer written into the bridge, then passed as its path
//
// Large buffers never cross by value: they go through the bridge namespace
// and only their path is passed.
//
// Result kinds:
//
//	Void                 results ignored
//	Status               i32; a negative value is an engine fault
//	String               i32 pointer to a NUL-terminated string
//	Int32 ... Float64    the raw scalar
//
// An engine trap, abort or negative status becomes an EngineFault carrying
// whatever the engine reported through env.report_error. Invoke is stateless;
// engine memory it allocates for arguments is freed before it returns.
//
// Invoke assumes one caller at a time per handle. Serial is a queue that
// enforces this.
package invoke
