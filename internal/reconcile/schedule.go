package reconcile

import (
	"fmt"
	"path/filepath"
	"strings"
)

// swapPrefix marks files parked while a chain of renames is unwound.
const swapPrefix = ".contentsync-swap-"

// Schedule orders actions so that applying them one at a time never
// overwrites or removes a path that a later action still reads.
//
// Deletes run first since they only vacate paths. Moves follow, each one
// held back while a pending move still reads a file at its target, at a
// parent directory of it, or below it. When only cycles remain, such as two
// files trading names, one source is parked under a temporary name with an
// extra move. Copies run last. The relative order within each kind is kept.
func Schedule(actions []Action) []Action {
	var deletes, moves, copies []Action
	for _, a := range actions {
		switch a.Kind {
		case KindDelete:
			deletes = append(deletes, a)
		case KindMove:
			moves = append(moves, a)
		case KindCopy:
			copies = append(copies, a)
		}
	}

	out := make([]Action, 0, len(actions))
	out = append(out, deletes...)
	out = append(out, orderMoves(moves)...)
	out = append(out, copies...)
	return out
}

func orderMoves(moves []Action) []Action {
	pending := append([]Action(nil), moves...)
	sources := make(map[string]int, len(pending))
	for _, m := range pending {
		sources[m.Source]++
	}

	out := make([]Action, 0, len(moves))
	parked := 0
	for len(pending) > 0 {
		progressed := false
		rest := pending[:0]
		for _, m := range pending {
			if _, _, blocked := blocker(sources, m.Target); blocked {
				rest = append(rest, m)
				continue
			}
			out = append(out, m)
			release(sources, m.Source)
			progressed = true
		}
		pending = rest
		if progressed || len(pending) == 0 {
			continue
		}

		// Every pending move waits on another one: park the source blocking
		// the first pending target. A file sitting on the target or one of
		// its parents is parked beside itself, a file below the target is
		// parked beside the target. Neither spot blocks any target, so each
		// move is parked at most once.
		target := pending[0].Target
		src, below, _ := blocker(sources, target)
		dir := filepath.Dir(src)
		if below {
			dir = filepath.Dir(target)
		}
		for i := range pending {
			if pending[i].Source != src {
				continue
			}
			parked++
			tmp := filepath.Join(dir, fmt.Sprintf("%s%d-%s", swapPrefix, parked, filepath.Base(src)))
			out = append(out, Move(src, tmp))
			release(sources, src)
			sources[tmp]++
			pending[i].Source = tmp
			break
		}
	}
	return out
}

// blocker returns a pending move source that keeps a file from being
// written at target: one at target or a parent directory of it, or else
// the lowest-named one below target. below is set for the latter.
func blocker(sources map[string]int, target string) (src string, below, ok bool) {
	for p := target; ; {
		if sources[p] > 0 {
			return p, false, true
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}

	prefix := target + string(filepath.Separator)
	for s := range sources {
		if strings.HasPrefix(s, prefix) && (!ok || s < src) {
			src, below, ok = s, true, true
		}
	}
	return src, below, ok
}

func release(sources map[string]int, path string) {
	if sources[path] <= 1 {
		delete(sources, path)
		return
	}
	sources[path]--
}
