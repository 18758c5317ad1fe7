// Package buildinfo holds the version stamped into the binary at link time.
package buildinfo

// Version is set at link-time with -ldflags.
var Version = "v0.1.0"

// Commit is set at link-time with -ldflags.
var Commit = "unknown"
