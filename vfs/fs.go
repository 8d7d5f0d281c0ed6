package vfs

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wippyai/engine-bridge/errors"
)

type entry struct {
	mod  time.Time
	data []byte
}

// FS is a sandboxed, flat namespace of byte buffers.
type FS struct {
	files map[string]entry
	mu    sync.RWMutex
}

// New creates an empty namespace.
func New() *FS {
	return &FS{files: make(map[string]entry)}
}

// Clean normalizes a virtual path: surrounding whitespace is trimmed and a
// leading "/" is added. No directory semantics are applied.
func Clean(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return path
}

// Temp returns a fresh, unused-by-construction virtual path.
func Temp(prefix, ext string) string {
	if prefix == "" {
		prefix = "tmp"
	}
	return "/" + prefix + "-" + uuid.NewString() + ext
}

func validate(path string) (string, error) {
	p := Clean(path)
	if p == "" {
		return "", errors.InvalidInput(errors.PhaseNamespace, "empty virtual path")
	}
	if strings.IndexByte(p, 0) >= 0 {
		return "", errors.New(errors.PhaseNamespace, errors.KindInvalidInput).
			Path(p).
			Detail("virtual path contains NUL").
			Build()
	}
	return p, nil
}

// Write stores a copy of data at path, replacing any previous buffer.
func (f *FS) Write(path string, data []byte) error {
	p, err := validate(path)
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	f.mu.Lock()
	f.files[p] = entry{data: buf, mod: time.Now()}
	f.mu.Unlock()
	return nil
}

// Read returns a copy of the buffer stored at path.
func (f *FS) Read(path string) ([]byte, error) {
	p, err := validate(path)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	e, ok := f.files[p]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.NamespaceFailure(p)
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// Exists reports whether path holds a buffer.
func (f *FS) Exists(path string) bool {
	_, ok := f.lookup(Clean(path))
	return ok
}

// Size returns the length of the buffer at path.
func (f *FS) Size(path string) (int, error) {
	p, err := validate(path)
	if err != nil {
		return 0, err
	}
	e, ok := f.lookup(p)
	if !ok {
		return 0, errors.NamespaceFailure(p)
	}
	return len(e.data), nil
}

// Remove deletes the buffer at path. Later reads fail with a namespace error.
func (f *FS) Remove(path string) error {
	p, err := validate(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[p]; !ok {
		return errors.NamespaceFailure(p)
	}
	delete(f.files, p)
	return nil
}

// List returns all paths in lexical order.
func (f *FS) List() []string {
	f.mu.RLock()
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	f.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Len returns the number of stored buffers.
func (f *FS) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.files)
}

// lookup returns the stored entry without copying. Callers must not mutate it.
func (f *FS) lookup(p string) (entry, bool) {
	f.mu.RLock()
	e, ok := f.files[p]
	f.mu.RUnlock()
	return e, ok
}
