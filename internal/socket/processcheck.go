package socket

import (
	"os"
	"strings"

	"github.com/mitchellh/go-ps"
)

var _ ProcessChecker = (*DefaultProcessChecker)(nil)

// ProcessChecker reports whether a process other than the caller is running.
type ProcessChecker interface {
	IsRunning(name string) bool
}

// DefaultProcessChecker scans the process table.
type DefaultProcessChecker struct{}

// IsRunning reports whether any process but this one has an executable name
// starting with name, ignoring case.
func (pc *DefaultProcessChecker) IsRunning(name string) bool {
	procs, err := ps.Processes()
	if err != nil {
		return false
	}
	self := os.Getpid()
	for _, p := range procs {
		if p.Pid() == self {
			continue
		}
		exe := p.Executable()
		if len(exe) >= len(name) && strings.EqualFold(exe[:len(name)], name) {
			return true
		}
	}
	return false
}
