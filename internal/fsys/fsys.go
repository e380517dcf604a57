// Package fsys provides the go-billy filesystem contentsync runs on outside
// of tests.
package fsys

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// host serves the source and the destination tree from one filesystem.
// Config roots are absolute host paths, so paths are passed to the OS
// unchanged instead of being joined to a base directory.
type host struct {
	osfs.ChrootOS
}

// Chroot is only needed to satisfy billy.Filesystem; the sync pipeline
// never narrows the host filesystem to a subtree.
//
//nolint:ireturn // required by billy.Chroot.
func (h *host) Chroot(path string) (billy.Filesystem, error) {
	return osfs.New(path), nil
}

// Root is "/" because every path handed to host is absolute.
func (h *host) Root() string {
	return "/"
}

// NewOS returns the filesystem used for real sync runs.
//
//nolint:ireturn // the pipeline depends on billy.Filesystem only.
func NewOS() billy.Filesystem {
	return &host{}
}
