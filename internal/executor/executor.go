// Package executor applies reconcile actions to a filesystem.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/schaermu/contentsync/internal/reconcile"
	"github.com/schaermu/contentsync/internal/syncerr"
)

// FailurePolicy decides what happens after an action fails.
type FailurePolicy string

const (
	// Abort stops at the first failed action.
	Abort FailurePolicy = "abort"
	// Continue applies the remaining actions and reports every failure.
	Continue FailurePolicy = "continue"
)

// Status is the outcome of one action.
type Status string

const (
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusPlanned Status = "planned"
)

// Outcome records what happened to a single action.
type Outcome struct {
	Action reconcile.Action `json:"action"`
	Status Status           `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// Result summarizes an Apply call.
type Result struct {
	Applied  int       `json:"applied"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Outcomes []Outcome `json:"outcomes"`
}

// Executor applies actions one at a time, in order.
type Executor struct {
	fs     billy.Filesystem
	logger *slog.Logger
	policy FailurePolicy
	dryRun bool
}

// New creates an Executor. An empty policy means Abort.
func New(fs billy.Filesystem, logger *slog.Logger, policy FailurePolicy, dryRun bool) *Executor {
	if policy == "" {
		policy = Abort
	}
	return &Executor{
		fs:     fs,
		logger: logger,
		policy: policy,
		dryRun: dryRun,
	}
}

// Apply performs actions in order. Under Abort the first failure is returned
// and the remaining actions are marked skipped; under Continue all failures
// are joined into the returned error. The Result is always non-nil.
func (e *Executor) Apply(ctx context.Context, actions []reconcile.Action) (*Result, error) {
	res := &Result{Outcomes: make([]Outcome, 0, len(actions))}
	var errs []error

	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			res.skip(actions[i:])
			return res, err
		}

		if e.dryRun {
			e.logger.Info("[dry-run] would "+string(a.Kind), "source", a.Source, "target", a.Target)
			res.Outcomes = append(res.Outcomes, Outcome{Action: a, Status: StatusPlanned})
			continue
		}

		if err := e.apply(a); err != nil {
			e.logger.Error("action failed", "kind", a.Kind, "target", a.Target, "error", err)
			res.Failed++
			res.Outcomes = append(res.Outcomes, Outcome{Action: a, Status: StatusFailed, Error: err.Error()})
			if e.policy == Abort {
				res.skip(actions[i+1:])
				return res, fmt.Errorf("failed to %s %s: %w", a.Kind, a.Target, err)
			}
			errs = append(errs, fmt.Errorf("failed to %s %s: %w", a.Kind, a.Target, err))
			continue
		}

		res.Applied++
		res.Outcomes = append(res.Outcomes, Outcome{Action: a, Status: StatusApplied})
	}

	return res, errors.Join(errs...)
}

func (r *Result) skip(actions []reconcile.Action) {
	for _, a := range actions {
		r.Skipped++
		r.Outcomes = append(r.Outcomes, Outcome{Action: a, Status: StatusSkipped})
	}
}

func (e *Executor) apply(a reconcile.Action) error {
	switch a.Kind {
	case reconcile.KindCopy:
		e.logger.Info("copying file", "source", a.Source, "dest", a.Target)
		return syncerr.Wrap("copy", a.Target, e.copyFile(a.Source, a.Target))
	case reconcile.KindMove:
		e.logger.Info("moving file", "from", a.Source, "to", a.Target)
		return syncerr.Wrap("move", a.Source, e.moveFile(a.Source, a.Target))
	case reconcile.KindDelete:
		e.logger.Info("deleting file", "dest", a.Target)
		return syncerr.Wrap("delete", a.Target, e.fs.Remove(a.Target))
	default:
		return fmt.Errorf("unknown action kind: %s", a.Kind)
	}
}

// copyFile streams src into a temporary file next to dst and renames it
// into place, so dst is never observed half written.
func (e *Executor) copyFile(src, dst string) error {
	if err := e.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := e.clearTarget(dst); err != nil {
		return err
	}

	srcFile, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	tmpFile, err := e.fs.TempFile(filepath.Dir(dst), ".contentsync-tmp-")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = e.fs.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := e.fs.Rename(tmpPath, dst); err != nil {
		return err
	}
	renamed = true
	return nil
}

func (e *Executor) moveFile(oldPath, newPath string) error {
	if err := e.fs.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		return err
	}
	if err := e.clearTarget(newPath); err != nil {
		return err
	}
	return e.fs.Rename(oldPath, newPath)
}

// clearTarget removes a directory at path when no file is left below it,
// which is what earlier deletes and moves leave behind when a file takes
// the place of a directory. A directory still holding files is an error.
func (e *Executor) clearTarget(path string) error {
	info, err := e.fs.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	empty, err := e.holdsNoFiles(path)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("%s is a directory that still holds files", path)
	}

	e.logger.Debug("removing empty directory in place of file", "path", path)
	return util.RemoveAll(e.fs, path)
}

func (e *Executor) holdsNoFiles(dir string) (bool, error) {
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return false, nil
		}
		empty, err := e.holdsNoFiles(filepath.Join(dir, entry.Name()))
		if err != nil || !empty {
			return false, err
		}
	}
	return true, nil
}
