package filesys

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
)

// SinkMode selects how successive writes to a Sink relate to each other.
type SinkMode string

const (
	// ModeTruncate rewrites the sink with only the latest batch on every write.
	ModeTruncate SinkMode = "truncate"
	// ModeAppend adds each batch to the end of the sink.
	ModeAppend SinkMode = "append"
)

// Valid reports whether m is a known mode.
func (m SinkMode) Valid() bool {
	return m == ModeTruncate || m == ModeAppend
}

const _sinkPerm os.FileMode = 0o644

// Sink persists batches of domains to a text file, one per line.
type Sink struct {
	fs   FileOps
	path string
	mode SinkMode
}

// NewSink returns a Sink writing to path. An empty or unknown mode is
// treated as ModeTruncate.
func NewSink(fs FileOps, path string, mode SinkMode) *Sink {
	if !mode.Valid() {
		mode = ModeTruncate
	}
	return &Sink{fs: fs, path: path, mode: mode}
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string { return s.path }

// Mode returns the sink's write mode.
func (s *Sink) Mode() SinkMode { return s.mode }

// Write persists domains. The data is fully flushed to disk before it returns.
func (s *Sink) Write(domains []string) error {
	data := joinLines(domains)
	if s.mode == ModeAppend {
		return s.append(data)
	}
	if err := AtomicWrite(s.fs, s.path, data, _sinkPerm); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

func (s *Sink) append(data []byte) (err error) {
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, _sinkPerm)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending to %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", s.path, err)
	}
	return nil
}
