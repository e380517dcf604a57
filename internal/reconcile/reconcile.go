// Package reconcile decides which filesystem actions turn a destination tree
// into a copy of a source tree.
//
// Decisions are made purely from two inventories: nothing in this package
// reads the filesystem, so the same inputs always yield the same actions.
// Content present on both sides under different names is renamed in place,
// never copied again.
package reconcile

import (
	"iter"
	"path/filepath"
	"sort"

	"github.com/schaermu/contentsync/internal/hasher"
	"github.com/schaermu/contentsync/internal/inventory"
)

// Actions yields the actions that make dst hold the content of src.
//
// The first pass walks src: content missing from dst is copied, content
// present under another name is moved. The second pass walks dst and deletes
// content that src no longer has. Within a pass, entries are visited in
// ascending name order.
func Actions(src, dst inventory.Inventory, srcRoot, dstRoot string) iter.Seq[Action] {
	return func(yield func(Action) bool) {
		for _, digest := range byName(src) {
			srcName := src[digest]
			dstName, ok := dst[digest]
			switch {
			case !ok:
				if !yield(Copy(join(srcRoot, srcName), join(dstRoot, srcName))) {
					return
				}
			case dstName != srcName:
				if !yield(Move(join(dstRoot, dstName), join(dstRoot, srcName))) {
					return
				}
			}
		}

		for _, digest := range byName(dst) {
			if _, ok := src[digest]; ok {
				continue
			}
			if !yield(Delete(join(dstRoot, dst[digest]))) {
				return
			}
		}
	}
}

// Reconcile collects Actions into a slice.
func Reconcile(src, dst inventory.Inventory, srcRoot, dstRoot string) []Action {
	var actions []Action
	for a := range Actions(src, dst, srcRoot, dstRoot) {
		actions = append(actions, a)
	}
	return actions
}

// join resolves a slash-separated inventory name below root.
func join(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(name))
}

// byName returns the digests of inv ordered by name, then digest.
func byName(inv inventory.Inventory) []hasher.Digest {
	digests := make([]hasher.Digest, 0, len(inv))
	for d := range inv {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool {
		ni, nj := inv[digests[i]], inv[digests[j]]
		if ni != nj {
			return ni < nj
		}
		return digests[i] < digests[j]
	})
	return digests
}
