package vfs

import (
	"io"
	"io/fs"
	"strings"
	"testing"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
)

const (
	oCreate = experimentalsys.O_CREAT | experimentalsys.O_TRUNC | experimentalsys.O_WRONLY
)

func openSys(t *testing.T, fsys *FS, name string, flag experimentalsys.Oflag) experimentalsys.File {
	t.Helper()
	f, errno := fsys.SysFS().OpenFile(name, flag, 0o600)
	if errno != 0 {
		t.Fatalf("OpenFile(%q): %v", name, errno)
	}
	return f
}

func readAll(t *testing.T, f experimentalsys.File) string {
	t.Helper()
	var b strings.Builder
	buf := make([]byte, 3)
	for {
		n, errno := f.Read(buf)
		if errno != 0 {
			t.Fatalf("Read: %v", errno)
		}
		if n == 0 {
			return b.String()
		}
		b.Write(buf[:n])
	}
}

func TestSysFS_CreateLandsOnClose(t *testing.T) {
	fsys := New()
	f := openSys(t, fsys, "output.pdf", oCreate)

	if size, err := fsys.Size("/output.pdf"); err != nil || size != 0 {
		t.Fatalf("created file: size %d, err %v; want empty buffer", size, err)
	}

	if n, errno := f.Write([]byte("%PDF-1.7")); errno != 0 || n != 8 {
		t.Fatalf("Write = %d, %v", n, errno)
	}
	if got, _ := fsys.Read("/output.pdf"); len(got) != 0 {
		t.Errorf("buffer before close = %q, want empty", got)
	}
	if errno := f.Close(); errno != 0 {
		t.Fatalf("Close: %v", errno)
	}

	got, err := fsys.Read("/output.pdf")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "%PDF-1.7" {
		t.Errorf("buffer = %q, want %%PDF-1.7", got)
	}
	if errno := f.Close(); errno != 0 {
		t.Errorf("second Close: %v", errno)
	}
}

func TestSysFS_SyncStoresEarly(t *testing.T) {
	fsys := New()
	f := openSys(t, fsys, "/log.txt", oCreate)
	defer f.Close()

	_, _ = f.Write([]byte("partial"))
	if errno := f.Sync(); errno != 0 {
		t.Fatalf("Sync: %v", errno)
	}
	if got, _ := fsys.Read("/log.txt"); string(got) != "partial" {
		t.Errorf("after Sync = %q, want partial", got)
	}
}

func TestSysFS_ReadHostBuffer(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/docs/in.pdf", []byte("0123456789"))

	f := openSys(t, fsys, "docs/in.pdf", experimentalsys.O_RDONLY)
	defer f.Close()

	if got := readAll(t, f); got != "0123456789" {
		t.Errorf("Read = %q", got)
	}
	if _, errno := f.Write([]byte("x")); errno != experimentalsys.EBADF {
		t.Errorf("Write on read-only file = %v, want EBADF", errno)
	}

	if off, errno := f.Seek(-3, io.SeekEnd); errno != 0 || off != 7 {
		t.Fatalf("Seek = %d, %v", off, errno)
	}
	if got := readAll(t, f); got != "789" {
		t.Errorf("after Seek = %q, want 789", got)
	}

	buf := make([]byte, 4)
	if n, errno := f.Pread(buf, 2); errno != 0 || string(buf[:n]) != "2345" {
		t.Errorf("Pread = %q, %v", buf[:n], errno)
	}

	st, errno := f.Stat()
	if errno != 0 || st.Size != 10 || st.Mode.IsDir() {
		t.Errorf("Stat = %+v, %v", st, errno)
	}
}

func TestSysFS_WriteDoesNotAliasStoredBuffer(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/a", []byte("abc"))

	f := openSys(t, fsys, "a", experimentalsys.O_RDWR)
	_, _ = f.Write([]byte("X"))
	if got, _ := fsys.Read("/a"); string(got) != "abc" {
		t.Errorf("stored buffer changed before close: %q", got)
	}
	_ = f.Close()
	if got, _ := fsys.Read("/a"); string(got) != "Xbc" {
		t.Errorf("after close = %q, want Xbc", got)
	}
}

func TestSysFS_TruncateAndAppend(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/a", []byte("abcdef"))

	f := openSys(t, fsys, "a", oCreate)
	_, _ = f.Write([]byte("x"))
	_ = f.Close()
	if got, _ := fsys.Read("/a"); string(got) != "x" {
		t.Fatalf("after O_TRUNC = %q, want x", got)
	}

	f = openSys(t, fsys, "a", experimentalsys.O_WRONLY|experimentalsys.O_APPEND)
	if !f.IsAppend() {
		t.Error("IsAppend should be true")
	}
	_, _ = f.Write([]byte("yz"))
	_ = f.Close()
	if got, _ := fsys.Read("/a"); string(got) != "xyz" {
		t.Fatalf("after append = %q, want xyz", got)
	}

	f = openSys(t, fsys, "a", experimentalsys.O_RDWR)
	if errno := f.Truncate(5); errno != 0 {
		t.Fatalf("Truncate: %v", errno)
	}
	_ = f.Close()
	if got, _ := fsys.Read("/a"); string(got) != "xyz\x00\x00" {
		t.Errorf("after Truncate(5) = %q", got)
	}
}

func TestSysFS_PwriteExtends(t *testing.T) {
	fsys := New()
	f := openSys(t, fsys, "sparse", oCreate)
	if _, errno := f.Pwrite([]byte("end"), 4); errno != 0 {
		t.Fatalf("Pwrite: %v", errno)
	}
	_ = f.Close()
	if got, _ := fsys.Read("/sparse"); string(got) != "\x00\x00\x00\x00end" {
		t.Errorf("buffer = %q", got)
	}
}

func TestSysFS_OpenErrors(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/docs/a.pdf", []byte("A"))

	tests := []struct {
		name string
		path string
		flag experimentalsys.Oflag
		want experimentalsys.Errno
	}{
		{"missing", "nope.pdf", experimentalsys.O_RDONLY, experimentalsys.ENOENT},
		{"missing directory", "nope", experimentalsys.O_DIRECTORY, experimentalsys.ENOENT},
		{"directory for write", "docs", experimentalsys.O_WRONLY, experimentalsys.EISDIR},
		{"root for write", ".", experimentalsys.O_RDWR, experimentalsys.EISDIR},
		{"exclusive create", "docs/a.pdf", experimentalsys.O_CREAT | experimentalsys.O_EXCL | experimentalsys.O_WRONLY, experimentalsys.EEXIST},
		{"file as directory", "docs/a.pdf", experimentalsys.O_DIRECTORY, experimentalsys.ENOTDIR},
		{"NUL in name", "a\x00b", experimentalsys.O_CREAT | experimentalsys.O_WRONLY, experimentalsys.EINVAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, errno := fsys.SysFS().OpenFile(tt.path, tt.flag, 0)
			if errno != tt.want {
				if f != nil {
					f.Close()
				}
				t.Errorf("OpenFile = %v, want %v", errno, tt.want)
			}
		})
	}
}

func TestSysFS_Stat(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/docs/a.pdf", []byte("12345"))
	s := fsys.SysFS()

	st, errno := s.Stat("docs/a.pdf")
	if errno != 0 || st.Size != 5 || st.Mode.IsDir() {
		t.Errorf("file Stat = %+v, %v", st, errno)
	}
	for _, dir := range []string{"docs", ".", "/"} {
		if st, errno := s.Stat(dir); errno != 0 || !st.Mode.IsDir() {
			t.Errorf("Stat(%q) = %+v, %v; want a directory", dir, st, errno)
		}
	}
	if _, errno := s.Lstat("missing"); errno != experimentalsys.ENOENT {
		t.Errorf("Lstat missing = %v, want ENOENT", errno)
	}
}

func TestSysFS_Readdir(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/b.pdf", []byte("bb"))
	_ = fsys.Write("/docs/a.pdf", []byte("a"))
	_ = fsys.Write("/docs/sub/c.pdf", []byte("c"))
	_ = fsys.Write("/e.pdf", nil)

	d := openSys(t, fsys, ".", experimentalsys.O_RDONLY)
	defer d.Close()

	if isDir, _ := d.IsDir(); !isDir {
		t.Fatal("root should be a directory")
	}

	first, errno := d.Readdir(2)
	if errno != 0 || len(first) != 2 {
		t.Fatalf("Readdir(2) = %v, %v", first, errno)
	}
	rest, errno := d.Readdir(-1)
	if errno != 0 || len(rest) != 1 {
		t.Fatalf("Readdir(-1) = %v, %v", rest, errno)
	}
	if first[0].Name != "b.pdf" || first[1].Name != "docs" || rest[0].Name != "e.pdf" {
		t.Errorf("entries = %v %v", first, rest)
	}
	if first[0].IsDir() || !first[1].IsDir() {
		t.Error("b.pdf should be a file and docs a directory")
	}
	if more, errno := d.Readdir(2); errno != 0 || len(more) != 0 {
		t.Errorf("exhausted Readdir = %v, %v", more, errno)
	}

	if _, errno := d.Seek(0, io.SeekStart); errno != 0 {
		t.Fatalf("rewind: %v", errno)
	}
	_ = fsys.Write("/f.pdf", nil)
	all, _ := d.Readdir(0)
	if len(all) != 4 {
		t.Errorf("after rewind = %v, want 4 entries", all)
	}

	sub := openSys(t, fsys, "docs", experimentalsys.O_RDONLY|experimentalsys.O_DIRECTORY)
	defer sub.Close()
	entries, _ := sub.Readdir(-1)
	if len(entries) != 2 || entries[0].Name != "a.pdf" || entries[1].Name != "sub" {
		t.Errorf("docs entries = %v", entries)
	}
}

func TestSysFS_EmptyRoot(t *testing.T) {
	d := openSys(t, New(), ".", experimentalsys.O_RDONLY)
	defer d.Close()
	entries, errno := d.Readdir(-1)
	if errno != 0 || len(entries) != 0 {
		t.Errorf("Readdir = %v, %v; want none", entries, errno)
	}
}

func TestSysFS_Unlink(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/docs/a.pdf", []byte("A"))
	s := fsys.SysFS()

	tests := []struct {
		name string
		path string
		want experimentalsys.Errno
	}{
		{"directory", "docs", experimentalsys.EISDIR},
		{"file", "docs/a.pdf", 0},
		{"already removed", "docs/a.pdf", experimentalsys.ENOENT},
	}
	for _, tt := range tests {
		if errno := s.Unlink(tt.path); errno != tt.want {
			t.Errorf("%s: Unlink = %v, want %v", tt.name, errno, tt.want)
		}
	}
	if fsys.Exists("/docs/a.pdf") {
		t.Error("unlinked buffer should be gone")
	}
}

func TestSysFS_Rename(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/tmp.pdf", []byte("done"))
	s := fsys.SysFS()

	if errno := s.Rename("tmp.pdf", "out/final.pdf"); errno != 0 {
		t.Fatalf("Rename: %v", errno)
	}
	if fsys.Exists("/tmp.pdf") {
		t.Error("source should be gone")
	}
	if got, _ := fsys.Read("/out/final.pdf"); string(got) != "done" {
		t.Errorf("target = %q", got)
	}
	if errno := s.Rename("tmp.pdf", "x"); errno != experimentalsys.ENOENT {
		t.Errorf("Rename missing = %v, want ENOENT", errno)
	}
}

func TestSysFS_Directories(t *testing.T) {
	fsys := New()
	_ = fsys.Write("/docs/a.pdf", []byte("A"))
	s := fsys.SysFS()

	tests := []struct {
		name string
		op   func() experimentalsys.Errno
		want experimentalsys.Errno
	}{
		{"mkdir existing", func() experimentalsys.Errno { return s.Mkdir("docs", fs.ModePerm) }, experimentalsys.EEXIST},
		{"mkdir new", func() experimentalsys.Errno { return s.Mkdir("out", fs.ModePerm) }, 0},
		{"rmdir non-empty", func() experimentalsys.Errno { return s.Rmdir("docs") }, experimentalsys.ENOTEMPTY},
		{"rmdir file", func() experimentalsys.Errno { return s.Rmdir("docs/a.pdf") }, experimentalsys.ENOTDIR},
		{"rmdir missing", func() experimentalsys.Errno { return s.Rmdir("nope") }, experimentalsys.ENOENT},
	}
	for _, tt := range tests {
		if errno := tt.op(); errno != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, errno, tt.want)
		}
	}
}
