// Package socket listens on and dials the Unix socket a running sweep
// publishes its status on.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrAddressInUse is returned by Listen when another process is already
	// serving on the socket.
	ErrAddressInUse = errors.New("address already in use")
	// ErrNotRunning is returned by Dial when no sweep is serving the socket.
	ErrNotRunning = errors.New("no sweep running")
)

// Options tunes listening and dialing.
type Options struct {
	// DialTimeout bounds how long Dial keeps retrying while a sweep process
	// exists but is not accepting yet.
	DialTimeout time.Duration
	// RetryInterval is the pause between dial attempts.
	RetryInterval time.Duration
	// Perm is applied to the socket file after it is created.
	Perm os.FileMode
	// ProcessName is the executable name of a sweep process.
	ProcessName string
}

// DefaultOptions returns the options used by the package-level helpers.
func DefaultOptions() Options {
	return Options{
		DialTimeout:   2 * time.Second,
		RetryInterval: 100 * time.Millisecond,
		Perm:          0o600,
		ProcessName:   "ipsniper",
	}
}

// Socket listens on and dials status sockets.
type Socket struct {
	opts  Options
	procs ProcessChecker
}

// New returns a Socket. A nil checker looks at the process table.
func New(opts Options, procs ProcessChecker) *Socket {
	if procs == nil {
		procs = &DefaultProcessChecker{}
	}
	return &Socket{opts: opts, procs: procs}
}

// Listen listens on path with DefaultOptions.
func Listen(path string) (net.Listener, error) {
	return New(DefaultOptions(), nil).Listen(path)
}

// Dial dials path with DefaultOptions.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	return New(DefaultOptions(), nil).Dial(ctx, path)
}

// Listen creates the socket directory if needed, replaces a stale socket file
// and starts listening on path. A socket someone is still serving on yields
// ErrAddressInUse.
func (s *Socket) Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := removeStale(path); err != nil {
		return nil, err
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("creating socket listener: %w", err)
	}
	if err := os.Chmod(path, s.opts.Perm); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return l, nil
}

// Dial connects to the sweep serving path. While a sweep process exists it
// retries until DialTimeout; otherwise it fails fast with ErrNotRunning.
func (s *Socket) Dial(ctx context.Context, path string) (net.Conn, error) {
	deadline := time.Now().Add(s.opts.DialTimeout)
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !s.procs.IsRunning(s.opts.ProcessName) {
			return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: sweep not accepting on %s: %v", ErrNotRunning, path, err)
		}

		t := time.NewTimer(s.opts.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func removeStale(path string) error {
	conn, err := net.Dial("unix", path)
	if err == nil {
		_ = conn.Close()
		return ErrAddressInUse
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	return nil
}
