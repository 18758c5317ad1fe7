package filesys_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lc/ipsniper/internal/filesys"
	"github.com/lc/ipsniper/internal/mocks"
)

type FilesysTestSuite struct {
	suite.Suite
	dir string
}

func (s *FilesysTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *FilesysTestSuite) write(name, content string) string {
	p := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (s *FilesysTestSuite) TestReadLines() {
	testCases := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "plain list",
			content:  "a.com\nb.com\nc.com\n",
			expected: []string{"a.com", "b.com", "c.com"},
		},
		{
			name:     "blank and padded lines",
			content:  "  a.com \n\n\t\nb.com\r\n   \n",
			expected: []string{"a.com", "b.com"},
		},
		{
			name:     "no trailing newline",
			content:  "a.com\nb.com",
			expected: []string{"a.com", "b.com"},
		},
		{
			name:     "empty file",
			content:  "",
			expected: nil,
		},
		{
			name:     "no lexical validation",
			content:  "not a domain!\n",
			expected: []string{"not a domain!"},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			p := s.write("domains.txt", tc.content)
			lines, err := filesys.ReadLines(filesys.OS(), p)
			s.Require().NoError(err)
			s.Equal(tc.expected, lines)
		})
	}
}

func (s *FilesysTestSuite) TestReadLinesMissingFile() {
	_, err := filesys.ReadLines(filesys.OS(), filepath.Join(s.dir, "missing.txt"))
	s.Error(err)
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *FilesysTestSuite) TestSinkTruncateRewritesEachBatch() {
	p := filepath.Join(s.dir, "out.txt")
	sink := filesys.NewSink(filesys.OS(), p, filesys.ModeTruncate)

	s.Require().NoError(sink.Write([]string{"a.com", "b.com"}))
	data, err := os.ReadFile(p)
	s.Require().NoError(err)
	s.Equal("a.com\nb.com\n", string(data))

	s.Require().NoError(sink.Write([]string{"c.com"}))
	data, err = os.ReadFile(p)
	s.Require().NoError(err)
	s.Equal("c.com\n", string(data))

	fi, err := os.Stat(p)
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o644), fi.Mode().Perm())

	// no temp files left behind
	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *FilesysTestSuite) TestSinkAppendKeepsHistory() {
	p := filepath.Join(s.dir, "out.txt")
	sink := filesys.NewSink(filesys.OS(), p, filesys.ModeAppend)

	s.Require().NoError(sink.Write([]string{"a.com", "b.com"}))
	s.Require().NoError(sink.Write([]string{"c.com"}))

	data, err := os.ReadFile(p)
	s.Require().NoError(err)
	s.Equal("a.com\nb.com\nc.com\n", string(data))
}

func (s *FilesysTestSuite) TestSinkUnknownModeDefaultsToTruncate() {
	sink := filesys.NewSink(filesys.OS(), "x", "bogus")
	s.Equal(filesys.ModeTruncate, sink.Mode())
	s.Equal("x", sink.Path())
}

func (s *FilesysTestSuite) TestSinkCreateTempFailure() {
	fsys := new(mocks.MockFS)
	fsys.On("CreateTemp", s.dir, ".ipsniper-*").Return(nil, errors.New("disk full"))

	sink := filesys.NewSink(fsys, filepath.Join(s.dir, "out.txt"), filesys.ModeTruncate)
	err := sink.Write([]string{"a.com"})

	s.Error(err)
	s.Contains(err.Error(), "disk full")
	fsys.AssertExpectations(s.T())
}

func (s *FilesysTestSuite) TestAtomicWriteRenameFailureRemovesTemp() {
	tmp, err := os.CreateTemp(s.dir, ".ipsniper-*")
	s.Require().NoError(err)

	fsys := new(mocks.MockFS)
	fsys.On("CreateTemp", s.dir, ".ipsniper-*").Return(tmp, nil)
	fsys.On("Chmod", tmp.Name(), os.FileMode(0o644)).Return(nil)
	fsys.On("Rename", tmp.Name(), mock.Anything).Return(errors.New("cross-device link"))
	fsys.On("Remove", tmp.Name()).Return(nil)

	err = filesys.AtomicWrite(fsys, filepath.Join(s.dir, "out.txt"), []byte("a.com\n"), 0o644)

	s.Error(err)
	s.Contains(err.Error(), "cross-device link")
	fsys.AssertExpectations(s.T())
}

func (s *FilesysTestSuite) TestSinkAppendOpenFailure() {
	fsys := new(mocks.MockFS)
	fsys.On("OpenFile", "out.txt", os.O_CREATE|os.O_WRONLY|os.O_APPEND, os.FileMode(0o644)).
		Return(nil, os.ErrPermission)

	err := filesys.NewSink(fsys, "out.txt", filesys.ModeAppend).Write([]string{"a.com"})

	s.ErrorIs(err, os.ErrPermission)
	fsys.AssertExpectations(s.T())
}

func TestFilesysSuite(t *testing.T) {
	suite.Run(t, new(FilesysTestSuite))
}
