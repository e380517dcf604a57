// Package tree enumerates the files of a directory tree.
package tree

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/schaermu/contentsync/internal/syncerr"
)

// Options controls which entries Discover returns.
type Options struct {
	// SkipHidden skips files and directories whose name starts with ".".
	SkipHidden bool
}

// Discover returns every regular file below root in lexical walk order.
// Directories, symlinks and other special files are not returned.
func Discover(fs billy.Filesystem, root string, opts Options) ([]string, error) {
	if err := CheckRoot(fs, root); err != nil {
		return nil, err
	}

	var files []string
	err := util.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return syncerr.Wrap("walk", path, err)
		}

		if opts.SkipHidden && path != root && IsHidden(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// CheckRoot verifies root exists and is a directory.
func CheckRoot(fs billy.Basic, root string) error {
	info, err := fs.Stat(root)
	if err != nil {
		return syncerr.Wrap("stat", root, err)
	}
	if !info.IsDir() {
		return &syncerr.NotADirectoryError{Path: root}
	}
	return nil
}

// IsHidden reports whether the base name of path starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// RelativePath returns target relative to baseDir, using forward slashes.
func RelativePath(baseDir, target string) (string, error) {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
