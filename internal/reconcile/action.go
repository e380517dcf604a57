package reconcile

import "fmt"

// Kind identifies the filesystem effect of an Action.
type Kind string

const (
	KindCopy   Kind = "copy"
	KindMove   Kind = "move"
	KindDelete Kind = "delete"
)

// Action is a single filesystem operation. Paths are absolute.
//
//	copy:   Source (in the source tree) -> Target (in the destination tree)
//	move:   Source (old path) -> Target (new path), both in the destination tree
//	delete: Target
type Action struct {
	Kind   Kind   `json:"kind"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

// Copy returns an action copying src to dst.
func Copy(src, dst string) Action {
	return Action{Kind: KindCopy, Source: src, Target: dst}
}

// Move returns an action renaming oldPath to newPath.
func Move(oldPath, newPath string) Action {
	return Action{Kind: KindMove, Source: oldPath, Target: newPath}
}

// Delete returns an action removing path.
func Delete(path string) Action {
	return Action{Kind: KindDelete, Target: path}
}

func (a Action) String() string {
	if a.Kind == KindDelete {
		return fmt.Sprintf("delete %s", a.Target)
	}
	return fmt.Sprintf("%s %s -> %s", a.Kind, a.Source, a.Target)
}

// Counts tallies actions by kind.
type Counts struct {
	Copy   int `json:"copy"`
	Move   int `json:"move"`
	Delete int `json:"delete"`
}

// Total returns the number of counted actions.
func (c Counts) Total() int {
	return c.Copy + c.Move + c.Delete
}

// Count tallies actions by kind.
func Count(actions []Action) Counts {
	var c Counts
	for _, a := range actions {
		switch a.Kind {
		case KindCopy:
			c.Copy++
		case KindMove:
			c.Move++
		case KindDelete:
			c.Delete++
		}
	}
	return c
}
