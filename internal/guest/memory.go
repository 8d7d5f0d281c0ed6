// Package guest adapts wazero engine memory and allocator exports to the
// enginebridge interfaces.
package guest

import (
	"bytes"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	enginebridge "github.com/wippyai/engine-bridge"
)

// WrapMemory wraps a wazero api.Memory. Returns nil for a nil memory.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem}
}

var _ enginebridge.Memory = (*Memory)(nil)

// Memory adapts wazero api.Memory to enginebridge.Memory.
// Reads return copies so that nothing handed to the host aliases engine memory.
type Memory struct {
	Mem api.Memory
}

// Read copies length bytes starting at offset.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write writes bytes to memory.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadCString reads a NUL-terminated string at offset, scanning at most limit
// bytes (0 means up to the end of memory).
func (m *Memory) ReadCString(offset uint32, limit uint32) (string, error) {
	size := m.Mem.Size()
	if offset >= size {
		return "", fmt.Errorf("memory read out of bounds: offset=%d, size=%d", offset, size)
	}
	n := size - offset
	if limit > 0 && n > limit {
		n = limit
	}
	buf, ok := m.Mem.Read(offset, n)
	if !ok {
		return "", fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, n)
	}
	end := bytes.IndexByte(buf, 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset=%d within %d bytes", offset, n)
	}
	return string(buf[:end]), nil
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.Mem.Size()
}
