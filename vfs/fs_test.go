package vfs

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	bridgeerrors "github.com/wippyai/engine-bridge/errors"
)

func TestFS_WriteRead(t *testing.T) {
	fsys := New()
	want := []byte("%PDF-1.7 hello")

	if err := fsys.Write("/input.pdf", want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fsys.Read("/input.pdf")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Read = %q, want %q", got, want)
	}
}

func TestFS_ReadUnwritten(t *testing.T) {
	fsys := New()
	_, err := fsys.Read("/missing.pdf")
	if !errors.Is(err, bridgeerrors.ErrNamespace) {
		t.Fatalf("Read unwritten: got %v, want namespace failure", err)
	}
	var e *bridgeerrors.Error
	if !errors.As(err, &e) || e.Path != "/missing.pdf" {
		t.Errorf("error should carry the path, got %v", err)
	}
}

func TestFS_EmptyBuffer(t *testing.T) {
	fsys := New()
	if err := fsys.Write("/empty", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fsys.Read("/empty")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read = %q, want empty", got)
	}
	if !fsys.Exists("/empty") {
		t.Error("empty buffer should exist")
	}
}

func TestFS_LastWriteWins(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/a", []byte("first"))
	_ = fsys.Write("/a", []byte("second"))

	got, err := fsys.Read("/a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Read = %q, want second", got)
	}
	if fsys.Len() != 1 {
		t.Errorf("Len = %d, want 1", fsys.Len())
	}
}

func TestFS_CopyIsolation(t *testing.T) {
	fsys := New()
	src := []byte("abc")
	_ = fsys.Write("/a", src)
	src[0] = 'X'

	got, _ := fsys.Read("/a")
	if string(got) != "abc" {
		t.Fatalf("mutating the written slice changed the buffer: %q", got)
	}

	got[1] = 'Y'
	again, _ := fsys.Read("/a")
	if string(again) != "abc" {
		t.Errorf("mutating a read slice changed the buffer: %q", again)
	}
}

func TestFS_Remove(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/a", []byte("x"))

	if err := fsys.Remove("/a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := fsys.Read("/a"); !errors.Is(err, bridgeerrors.ErrNamespace) {
		t.Errorf("Read after Remove: got %v, want namespace failure", err)
	}
	if err := fsys.Remove("/a"); !errors.Is(err, bridgeerrors.ErrNamespace) {
		t.Errorf("second Remove: got %v, want namespace failure", err)
	}
}

func TestFS_Size(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/a", make([]byte, 1234))

	n, err := fsys.Size("/a")
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if n != 1234 {
		t.Errorf("Size = %d, want 1234", n)
	}
	if _, err := fsys.Size("/b"); !errors.Is(err, bridgeerrors.ErrNamespace) {
		t.Errorf("Size of missing: got %v", err)
	}
}

func TestFS_InvalidPaths(t *testing.T) {
	fsys := New()
	for _, p := range []string{"", "   ", "/a\x00b"} {
		t.Run(fmt.Sprintf("%q", p), func(t *testing.T) {
			err := fsys.Write(p, []byte("x"))
			var e *bridgeerrors.Error
			if !errors.As(err, &e) || e.Kind != bridgeerrors.KindInvalidInput {
				t.Errorf("Write(%q) = %v, want invalid input", p, err)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/input.pdf", "/input.pdf"},
		{"input.pdf", "/input.pdf"},
		{"  /a/b.pdf ", "/a/b.pdf"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFS_RelativeAndAbsoluteAlias(t *testing.T) {
	fsys := New()
	_ = fsys.Write("doc.pdf", []byte("x"))
	if !fsys.Exists("/doc.pdf") {
		t.Error("relative and absolute spellings should name the same buffer")
	}
}

func TestTemp(t *testing.T) {
	a := Temp("in", ".pdf")
	b := Temp("in", ".pdf")
	if a == b {
		t.Errorf("Temp returned the same path twice: %s", a)
	}
	if !strings.HasPrefix(a, "/in-") || !strings.HasSuffix(a, ".pdf") {
		t.Errorf("Temp = %q, want /in-<id>.pdf", a)
	}
	if got := Temp("", ""); !strings.HasPrefix(got, "/tmp-") {
		t.Errorf("Temp with empty prefix = %q", got)
	}
}

func TestFS_List(t *testing.T) {
	fsys := New()
	for _, p := range []string{"/c", "/a", "/b/x"} {
		_ = fsys.Write(p, nil)
	}
	got := strings.Join(fsys.List(), ",")
	if got != "/a,/b/x,/c" {
		t.Errorf("List = %s", got)
	}
}

func TestFS_ConcurrentAccess(t *testing.T) {
	fsys := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("/f%d", i)
			_ = fsys.Write(p, []byte(p))
			if _, err := fsys.Read(p); err != nil {
				t.Errorf("Read %s: %v", p, err)
			}
		}(i)
	}
	wg.Wait()
	if fsys.Len() != 16 {
		t.Errorf("Len = %d, want 16", fsys.Len())
	}
}
