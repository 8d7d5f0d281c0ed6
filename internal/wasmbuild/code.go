package wasmbuild

// Code emits a function body. Methods return the receiver for chaining.
type Code struct {
	buf Buffer
}

func (c *Code) op(b byte) *Code {
	c.buf.AppendByte(b)
	return c
}

func (c *Code) opIdx(b byte, idx uint32) *Code {
	c.buf.AppendByte(b)
	c.buf.WriteU32(idx)
	return c
}

// Control flow. Blocks opened by Block, Loop and If take no params or results.
func (c *Code) Unreachable() *Code      { return c.op(0x00) }
func (c *Code) Block() *Code            { return c.op(0x02).op(blockEmpty) }
func (c *Code) Loop() *Code             { return c.op(0x03).op(blockEmpty) }
func (c *Code) If() *Code               { return c.op(0x04).op(blockEmpty) }
func (c *Code) Else() *Code             { return c.op(0x05) }
func (c *Code) End() *Code              { return c.op(0x0B) }
func (c *Code) Br(depth uint32) *Code   { return c.opIdx(0x0C, depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.opIdx(0x0D, depth) }
func (c *Code) Return() *Code           { return c.op(0x0F) }
func (c *Code) Call(fn uint32) *Code    { return c.opIdx(0x10, fn) }
func (c *Code) Drop() *Code             { return c.op(0x1A) }

// Variables.
func (c *Code) LocalGet(i uint32) *Code  { return c.opIdx(0x20, i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.opIdx(0x21, i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.opIdx(0x22, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.opIdx(0x23, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.opIdx(0x24, i) }

// Memory.
func (c *Code) I32Load8U(offset uint32) *Code {
	c.op(0x2D)
	c.buf.WriteU32(0) // align
	c.buf.WriteU32(offset)
	return c
}

// I32Load loads a 4-byte aligned i32 from address+offset.
func (c *Code) I32Load(offset uint32) *Code {
	c.op(0x28)
	c.buf.WriteU32(2)
	c.buf.WriteU32(offset)
	return c
}

// I32Store stores an i32 at address+offset; the stack holds address, value.
func (c *Code) I32Store(offset uint32) *Code {
	c.op(0x36)
	c.buf.WriteU32(2)
	c.buf.WriteU32(offset)
	return c
}

func (c *Code) MemorySize() *Code { return c.op(0x3F).op(0x00) }
func (c *Code) MemoryGrow() *Code { return c.op(0x40).op(0x00) }

// Constants.
func (c *Code) I32Const(v int32) *Code {
	c.op(0x41)
	c.buf.WriteI32(v)
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.op(0x42)
	c.buf.WriteI64(v)
	return c
}

func (c *Code) F32Const(v float32) *Code {
	c.op(0x43)
	c.buf.WriteF32(v)
	return c
}

func (c *Code) F64Const(v float64) *Code {
	c.op(0x44)
	c.buf.WriteF64(v)
	return c
}

// Numeric.
func (c *Code) I32Eqz() *Code  { return c.op(0x45) }
func (c *Code) I32Ne() *Code   { return c.op(0x47) }
func (c *Code) I32LtS() *Code  { return c.op(0x48) }
func (c *Code) I32GtU() *Code  { return c.op(0x4B) }
func (c *Code) I32Add() *Code  { return c.op(0x6A) }
func (c *Code) I32Sub() *Code  { return c.op(0x6B) }
func (c *Code) I32And() *Code  { return c.op(0x71) }
func (c *Code) I32Shl() *Code  { return c.op(0x74) }
func (c *Code) I32ShrU() *Code { return c.op(0x76) }
func (c *Code) I64Add() *Code  { return c.op(0x7C) }
func (c *Code) F32Mul() *Code  { return c.op(0x94) }
func (c *Code) F64Mul() *Code  { return c.op(0xA2) }
