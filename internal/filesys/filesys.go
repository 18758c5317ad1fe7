// Package filesys holds the file-system seams used by ipsniper: the small
// interfaces the config loader and the match sink depend on, the OS-backed
// implementation, and the line-oriented input/output helpers built on them.
package filesys

import (
	"bufio"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/lc/ipsniper/internal/log"
)

// ReadWriteFS is the tiny surface the config loader and the domain reader need.
type ReadWriteFS interface {
	Stat(string) (fs.FileInfo, error)
	MkdirAll(string, os.FileMode) error
	Open(string) (*os.File, error)
	WriteFile(string, []byte, os.FileMode) error
}

// FileOps is what the match sink needs for atomic rewrites and appends.
type FileOps interface {
	Open(string) (*os.File, error)
	OpenFile(string, int, os.FileMode) (*os.File, error)
	ReadFile(string) ([]byte, error)
	MkdirAll(string, os.FileMode) error
	CreateTemp(string, string) (*os.File, error)
	Rename(string, string) error
	Remove(string) error
	Chmod(string, os.FileMode) error
}

// OS returns a file system implementation that delegates to the standard library.
// The returned implementation satisfies both ReadWriteFS and FileOps interfaces.
func OS() OsFS {
	return OsFS{}
}

// OsFS implements both ReadWriteFS and FileOps against the local disk.
type OsFS struct{}

func (OsFS) Stat(p string) (fs.FileInfo, error)     { return os.Stat(p) }
func (OsFS) MkdirAll(p string, m os.FileMode) error { return os.MkdirAll(p, m) }
func (OsFS) Open(p string) (*os.File, error)        { return os.Open(p) }
func (OsFS) OpenFile(p string, flag int, m os.FileMode) (*os.File, error) {
	return os.OpenFile(p, flag, m)
}
func (OsFS) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(p)
}
func (OsFS) WriteFile(p string, b []byte, m os.FileMode) error { return os.WriteFile(p, b, m) }
func (OsFS) CreateTemp(dir, pat string) (*os.File, error)      { return os.CreateTemp(dir, pat) }
func (OsFS) Rename(old, newName string) error                  { return os.Rename(old, newName) }
func (OsFS) Remove(p string) error                             { return os.Remove(p) }
func (OsFS) Chmod(p string, m os.FileMode) error               { return os.Chmod(p, m) }

var (
	_ ReadWriteFS = OsFS{}
	_ FileOps     = OsFS{}
)

// Opener is satisfied by both ReadWriteFS and FileOps.
type Opener interface {
	Open(string) (*os.File, error)
}

// ReadLines returns every non-blank, trimmed line of the file at path.
// Lines are returned in file order; no other validation is applied.
func ReadLines(fsys Opener, path string) (lines []string, err error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	sc := bufio.NewScanner(f)
	// some block lists carry very long lines; allow up to 1MiB per entry.
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// AtomicWrite atomically persists data to dst with the provided file mode.
// The write is crash-safe on local filesystems:
//
//  1. temp file in the same dir
//  2. fsync(temp) + close
//  3. chmod(temp, perm)  (so rename doesn’t carry 0600 default)
//  4. rename(temp, dst)
//  5. fsync(dir)
//
// Callers supply an injected FileOps implementation so the function
// remains unit-testable with a mocked FS.
func AtomicWrite(fs FileOps, dst string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(dst)
	tmp, err := fs.CreateTemp(dir, ".ipsniper-*")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	cerr := tmp.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		removeTemp(fs, tmp.Name())
		return err
	}
	if err = fs.Chmod(tmp.Name(), perm); err != nil {
		removeTemp(fs, tmp.Name())
		return err
	}
	if err = fs.Rename(tmp.Name(), dst); err != nil {
		removeTemp(fs, tmp.Name())
		return err
	}
	if d, err2 := fs.Open(dir); err2 == nil {
		if syncErr := d.Sync(); syncErr != nil {
			log.Warnf("filesys: failed to sync directory %s: %v", dir, syncErr)
		}
		if closeErr := d.Close(); closeErr != nil {
			log.Warnf("filesys: failed to close directory %s: %v", dir, closeErr)
		}
	}
	return nil
}

func removeTemp(fs FileOps, name string) {
	if err := fs.Remove(name); err != nil {
		log.Warnf("filesys: failed to remove temp file %s: %v", name, err)
	}
}

// joinLines renders lines one per row, each newline-terminated.
func joinLines(lines []string) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
