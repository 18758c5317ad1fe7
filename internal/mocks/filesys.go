// Package mocks holds testify mocks shared by package tests.
package mocks

import (
	"io/fs"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/lc/ipsniper/internal/filesys"
)

var (
	_ filesys.ReadWriteFS = (*MockFS)(nil)
	_ filesys.FileOps     = (*MockFS)(nil)
)

// MockFS mocks both filesystem interfaces. Methods returning a file or data
// accept nil as the first return value.
type MockFS struct {
	mock.Mock
}

func file(args mock.Arguments) (*os.File, error) {
	f, _ := args.Get(0).(*os.File)
	return f, args.Error(1)
}

func (m *MockFS) Stat(p string) (fs.FileInfo, error) {
	args := m.Called(p)
	fi, _ := args.Get(0).(fs.FileInfo)
	return fi, args.Error(1)
}

func (m *MockFS) ReadFile(p string) ([]byte, error) {
	args := m.Called(p)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockFS) Open(p string) (*os.File, error) { return file(m.Called(p)) }

func (m *MockFS) OpenFile(p string, flag int, perm os.FileMode) (*os.File, error) {
	return file(m.Called(p, flag, perm))
}

func (m *MockFS) CreateTemp(dir, pattern string) (*os.File, error) {
	return file(m.Called(dir, pattern))
}

func (m *MockFS) MkdirAll(p string, perm os.FileMode) error { return m.Called(p, perm).Error(0) }

func (m *MockFS) WriteFile(p string, b []byte, perm os.FileMode) error {
	return m.Called(p, b, perm).Error(0)
}

func (m *MockFS) Rename(from, to string) error { return m.Called(from, to).Error(0) }

func (m *MockFS) Remove(p string) error { return m.Called(p).Error(0) }

func (m *MockFS) Chmod(p string, perm os.FileMode) error { return m.Called(p, perm).Error(0) }
