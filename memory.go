package enginebridge

// Memory represents engine linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadCString(offset uint32, limit uint32) (string, error)
	Size() uint32
}

// Allocator allocates memory in engine linear memory
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
