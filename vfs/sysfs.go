package vfs

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/sys"
)

// SysFS returns a writable view of the namespace for wazero's
// experimentalsys.FS mounts. Virtual path "/a/b" is visible as "a/b".
//
// Files opened for writing work on a private copy which is stored with
// FS.Write on Close, Sync or Datasync. A file created with O_CREAT exists
// (empty) as soon as it is opened. Directories are implicit: a directory
// exists while some buffer lives beneath it.
func (f *FS) SysFS() experimentalsys.FS {
	return &sysFS{fsys: f}
}

type sysFS struct {
	experimentalsys.UnimplementedFS
	fsys *FS
}

// sysName converts a name relative to the mount into a name for dirEntries.
// The mount root is ".".
func sysName(name string) (string, experimentalsys.Errno) {
	if strings.IndexByte(name, 0) >= 0 {
		return "", experimentalsys.EINVAL
	}
	name = path.Clean("/" + name)
	if name == "/" {
		return ".", 0
	}
	return name[1:], 0
}

func (s *sysFS) OpenFile(name string, flag experimentalsys.Oflag, _ fs.FileMode) (experimentalsys.File, experimentalsys.Errno) {
	name, errno := sysName(name)
	if errno != 0 {
		return nil, errno
	}
	access := flag & (experimentalsys.O_RDWR | experimentalsys.O_WRONLY)
	exclusive := flag&experimentalsys.O_CREAT != 0 && flag&experimentalsys.O_EXCL != 0

	p := "/" + name
	if name != "." {
		if e, ok := s.fsys.lookup(p); ok {
			if flag&experimentalsys.O_DIRECTORY != 0 {
				return nil, experimentalsys.ENOTDIR
			}
			if exclusive {
				return nil, experimentalsys.EEXIST
			}
			return s.openFile(p, e, flag, access), 0
		}
	}

	if _, ok := s.fsys.dirEntries(name); ok {
		if access != experimentalsys.O_RDONLY {
			return nil, experimentalsys.EISDIR
		}
		if exclusive {
			return nil, experimentalsys.EEXIST
		}
		return &sysDir{fsys: s.fsys, name: name}, 0
	}

	if flag&experimentalsys.O_CREAT == 0 || flag&experimentalsys.O_DIRECTORY != 0 {
		return nil, experimentalsys.ENOENT
	}
	if err := s.fsys.Write(p, nil); err != nil {
		return nil, experimentalsys.EINVAL
	}
	e, _ := s.fsys.lookup(p)
	return s.openFile(p, e, flag, access), 0
}

func (s *sysFS) openFile(p string, e entry, flag, access experimentalsys.Oflag) *sysFile {
	f := &sysFile{
		fsys:   s.fsys,
		path:   p,
		data:   e.data,
		mod:    e.mod,
		read:   access != experimentalsys.O_WRONLY,
		write:  access != experimentalsys.O_RDONLY,
		append: flag&experimentalsys.O_APPEND != 0,
	}
	if f.write {
		// Stored entries are shared and must not be mutated in place.
		f.data = append([]byte(nil), e.data...)
		if flag&experimentalsys.O_TRUNC != 0 {
			f.data = f.data[:0]
			f.dirty = true
		}
	}
	return f
}

func (s *sysFS) Stat(name string) (sys.Stat_t, experimentalsys.Errno) {
	name, errno := sysName(name)
	if errno != 0 {
		return sys.Stat_t{}, errno
	}
	if name != "." {
		if e, ok := s.fsys.lookup("/" + name); ok {
			return fileStat(len(e.data), e.mod), 0
		}
	}
	if _, ok := s.fsys.dirEntries(name); ok {
		return dirStat(), 0
	}
	return sys.Stat_t{}, experimentalsys.ENOENT
}

// Lstat is Stat: the namespace has no links.
func (s *sysFS) Lstat(name string) (sys.Stat_t, experimentalsys.Errno) {
	return s.Stat(name)
}

func (s *sysFS) Unlink(name string) experimentalsys.Errno {
	name, errno := sysName(name)
	if errno != 0 {
		return errno
	}
	if name != "." && s.fsys.Remove("/"+name) == nil {
		return 0
	}
	if _, ok := s.fsys.dirEntries(name); ok {
		return experimentalsys.EISDIR
	}
	return experimentalsys.ENOENT
}

func (s *sysFS) Rename(from, to string) experimentalsys.Errno {
	from, errno := sysName(from)
	if errno != 0 {
		return errno
	}
	to, errno = sysName(to)
	if errno != 0 {
		return errno
	}
	if from == "." || to == "." {
		return experimentalsys.EISDIR
	}

	f := s.fsys
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.files["/"+from]
	if !ok {
		return experimentalsys.ENOENT
	}
	if from != to {
		f.files["/"+to] = entry{data: e.data, mod: time.Now()}
		delete(f.files, "/"+from)
	}
	return 0
}

// Mkdir succeeds for any name not in use. The directory becomes visible once
// a buffer is written beneath it.
func (s *sysFS) Mkdir(name string, _ fs.FileMode) experimentalsys.Errno {
	if _, errno := s.Stat(name); errno == 0 {
		return experimentalsys.EEXIST
	}
	if _, errno := sysName(name); errno != 0 {
		return errno
	}
	return 0
}

func (s *sysFS) Rmdir(name string) experimentalsys.Errno {
	name, errno := sysName(name)
	if errno != 0 {
		return errno
	}
	if name == "." {
		return experimentalsys.EINVAL
	}
	if s.fsys.Exists("/" + name) {
		return experimentalsys.ENOTDIR
	}
	if _, ok := s.fsys.dirEntries(name); ok {
		return experimentalsys.ENOTEMPTY
	}
	return experimentalsys.ENOENT
}

func fileStat(size int, mod time.Time) sys.Stat_t {
	t := mod.UnixNano()
	return sys.Stat_t{Mode: 0o644, Nlink: 1, Size: int64(size), Atim: t, Mtim: t, Ctim: t}
}

func dirStat() sys.Stat_t {
	return sys.Stat_t{Mode: fs.ModeDir | 0o755, Nlink: 1}
}

// sysFile is an open buffer. Writable files hold a private copy.
type sysFile struct {
	experimentalsys.UnimplementedFile
	fsys   *FS
	mod    time.Time
	path   string
	data   []byte
	off    int64
	read   bool
	write  bool
	append bool
	dirty  bool
	closed bool
}

func (f *sysFile) IsAppend() bool { return f.append }

func (f *sysFile) SetAppend(enable bool) experimentalsys.Errno {
	f.append = enable
	return 0
}

func (f *sysFile) Stat() (sys.Stat_t, experimentalsys.Errno) {
	if f.closed {
		return sys.Stat_t{}, experimentalsys.EBADF
	}
	return fileStat(len(f.data), f.mod), 0
}

func (f *sysFile) Read(buf []byte) (int, experimentalsys.Errno) {
	n, errno := f.Pread(buf, f.off)
	f.off += int64(n)
	return n, errno
}

func (f *sysFile) Pread(buf []byte, off int64) (int, experimentalsys.Errno) {
	if f.closed || !f.read {
		return 0, experimentalsys.EBADF
	}
	if off < 0 {
		return 0, experimentalsys.EINVAL
	}
	if off >= int64(len(f.data)) {
		return 0, 0
	}
	return copy(buf, f.data[off:]), 0
}

func (f *sysFile) Seek(offset int64, whence int) (int64, experimentalsys.Errno) {
	if f.closed {
		return 0, experimentalsys.EBADF
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.off
	case io.SeekEnd:
		offset += int64(len(f.data))
	default:
		return 0, experimentalsys.EINVAL
	}
	if offset < 0 {
		return 0, experimentalsys.EINVAL
	}
	f.off = offset
	return offset, 0
}

func (f *sysFile) Readdir(int) ([]experimentalsys.Dirent, experimentalsys.Errno) {
	return nil, experimentalsys.EBADF
}

func (f *sysFile) Write(buf []byte) (int, experimentalsys.Errno) {
	if f.append {
		f.off = int64(len(f.data))
	}
	n, errno := f.Pwrite(buf, f.off)
	f.off += int64(n)
	return n, errno
}

func (f *sysFile) Pwrite(buf []byte, off int64) (int, experimentalsys.Errno) {
	if f.closed || !f.write {
		return 0, experimentalsys.EBADF
	}
	if off < 0 {
		return 0, experimentalsys.EINVAL
	}
	if end := off + int64(len(buf)); end > int64(len(f.data)) {
		f.data = append(f.data, make([]byte, end-int64(len(f.data)))...)
	}
	n := copy(f.data[off:], buf)
	f.dirty = true
	f.mod = time.Now()
	return n, 0
}

func (f *sysFile) Truncate(size int64) experimentalsys.Errno {
	if f.closed || !f.write {
		return experimentalsys.EBADF
	}
	if size < 0 {
		return experimentalsys.EINVAL
	}
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
	} else {
		f.data = append(f.data, make([]byte, size-int64(len(f.data)))...)
	}
	f.dirty = true
	f.mod = time.Now()
	return 0
}

func (f *sysFile) Sync() experimentalsys.Errno     { return f.flush() }
func (f *sysFile) Datasync() experimentalsys.Errno { return f.flush() }

func (f *sysFile) Close() experimentalsys.Errno {
	if f.closed {
		return 0
	}
	errno := f.flush()
	f.closed = true
	return errno
}

func (f *sysFile) flush() experimentalsys.Errno {
	if f.closed {
		return experimentalsys.EBADF
	}
	if !f.dirty {
		return 0
	}
	if err := f.fsys.Write(f.path, f.data); err != nil {
		return experimentalsys.EIO
	}
	f.dirty = false
	return 0
}

// sysDir is an open directory. Its listing is taken on the first Readdir
// and again after a rewind.
type sysDir struct {
	experimentalsys.DirFile
	fsys    *FS
	name    string
	entries []experimentalsys.Dirent
	loaded  bool
	closed  bool
}

func (d *sysDir) Dev() (uint64, experimentalsys.Errno)    { return 0, 0 }
func (d *sysDir) Ino() (sys.Inode, experimentalsys.Errno) { return 0, 0 }
func (d *sysDir) Sync() experimentalsys.Errno             { return 0 }
func (d *sysDir) Datasync() experimentalsys.Errno         { return 0 }

func (d *sysDir) Utimens(int64, int64) experimentalsys.Errno {
	return experimentalsys.ENOSYS
}

func (d *sysDir) Stat() (sys.Stat_t, experimentalsys.Errno) {
	if d.closed {
		return sys.Stat_t{}, experimentalsys.EBADF
	}
	return dirStat(), 0
}

func (d *sysDir) Seek(offset int64, whence int) (int64, experimentalsys.Errno) {
	if d.closed {
		return 0, experimentalsys.EBADF
	}
	if offset != 0 || whence != io.SeekStart {
		return 0, experimentalsys.EINVAL
	}
	d.loaded = false
	return 0, 0
}

func (d *sysDir) Readdir(n int) ([]experimentalsys.Dirent, experimentalsys.Errno) {
	if d.closed {
		return nil, experimentalsys.EBADF
	}
	if !d.loaded {
		d.load()
	}
	rest := d.entries
	if n > 0 && n < len(rest) {
		rest = rest[:n]
	}
	d.entries = d.entries[len(rest):]
	return rest, 0
}

func (d *sysDir) load() {
	d.loaded = true
	d.entries, _ = d.fsys.dirEntries(d.name)
}

func (d *sysDir) Close() experimentalsys.Errno {
	d.closed = true
	return 0
}

// dirEntries lists the immediate children of directory name ("." is the root)
// sorted by name. ok is false when no stored path lives under name.
func (f *FS) dirEntries(name string) ([]experimentalsys.Dirent, bool) {
	prefix := "/"
	if name != "." {
		prefix = "/" + name + "/"
	}

	f.mu.RLock()
	children := make(map[string]fs.FileMode)
	found := false
	for p := range f.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			continue
		}
		found = true
		child, _, isDir := strings.Cut(rest, "/")
		if child == "" {
			continue
		}
		if !isDir {
			children[child] = 0
		} else if _, seen := children[child]; !seen {
			children[child] = fs.ModeDir
		}
	}
	f.mu.RUnlock()

	if !found && name != "." {
		return nil, false
	}

	entries := make([]experimentalsys.Dirent, 0, len(children))
	for child, typ := range children {
		entries = append(entries, experimentalsys.Dirent{Name: child, Type: typ})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, true
}
