package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/schaermu/contentsync/internal/config"
	"github.com/schaermu/contentsync/internal/executor"
	"github.com/schaermu/contentsync/internal/fsys"
	"github.com/schaermu/contentsync/internal/hasher"
	"github.com/schaermu/contentsync/internal/inventory"
	"github.com/schaermu/contentsync/internal/reconcile"
	"github.com/schaermu/contentsync/internal/tree"
)

// Engine orchestrates the sync process
type Engine struct {
	cfg    *config.Config
	fs     billy.Filesystem
	logger *slog.Logger
	dryRun bool
	now    func() time.Time
}

// NewEngine creates a new sync engine
func NewEngine(cfg *config.Config, fs billy.Filesystem, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:    cfg,
		fs:     fs,
		logger: logger,
		dryRun: dryRun,
		now:    time.Now,
	}
}

// Sync makes dest hold the content of source using the default
// configuration on the host filesystem.
func Sync(ctx context.Context, source, dest string) error {
	cfg := config.Default()
	cfg.Paths.Source = source
	cfg.Paths.Dest = dest
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	_, err := NewEngine(cfg, fsys.NewOS(), logger, false).Run(ctx)
	return err
}

// Run executes the complete sync process
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	logger := e.logger.With("run_id", runID)
	started := e.now()

	logger.Info("starting sync",
		"source", e.cfg.SourceDir(),
		"dest", e.cfg.DestDir(),
		"dry_run", e.dryRun)

	plan, err := e.Plan(ctx)
	if err != nil {
		return nil, err
	}

	counts := reconcile.Count(plan.Actions)
	logger.Info("sync plan",
		"copy", counts.Copy,
		"move", counts.Move,
		"delete", counts.Delete)

	report := &Report{
		RunID:     runID,
		Source:    e.cfg.SourceDir(),
		Dest:      e.cfg.DestDir(),
		Algorithm: e.cfg.Hash.Algorithm,
		Naming:    string(e.cfg.Inventory.Naming),
		DryRun:    e.dryRun,
		StartedAt: started,
		Planned:   counts,
		Inventory: plan.Stats,
	}

	exec := executor.New(e.fs, logger, executor.FailurePolicy(e.cfg.Sync.OnError), e.dryRun)
	result, applyErr := exec.Apply(ctx, plan.Actions)
	report.Result = result
	report.FinishedAt = e.now()
	if applyErr != nil {
		report.Error = applyErr.Error()
	}

	if e.cfg.Report.Path != "" {
		if err := report.Write(e.cfg.Report.Path); err != nil {
			logger.Warn("failed to write run report", "path", e.cfg.Report.Path, "error", err)
		}
	}

	if applyErr != nil {
		return report, fmt.Errorf("failed to apply sync plan: %w", applyErr)
	}

	if e.dryRun {
		logger.Info("dry-run complete, no changes applied")
	} else {
		logger.Info("sync completed successfully", "applied", result.Applied)
	}
	return report, nil
}

// Plan holds the actions of a run and the statistics of the inventories
// they were derived from.
type Plan struct {
	Actions []reconcile.Action
	Stats   InventoryStats
}

// Plan builds both inventories and returns the scheduled actions without
// touching the destination.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	srcRoot, dstRoot := e.cfg.SourceDir(), e.cfg.DestDir()

	if err := tree.CheckRoot(e.fs, srcRoot); err != nil {
		return nil, fmt.Errorf("invalid source directory: %w", err)
	}
	if err := tree.CheckRoot(e.fs, dstRoot); err != nil {
		return nil, fmt.Errorf("invalid destination directory: %w", err)
	}

	h, err := hasher.New(hasher.Algorithm(e.cfg.Hash.Algorithm))
	if err != nil {
		return nil, err
	}
	builder := inventory.NewBuilder(e.fs, h, inventory.Options{
		Naming:     inventory.Naming(e.cfg.Inventory.Naming),
		Workers:    e.cfg.Inventory.Workers,
		SkipHidden: e.cfg.Inventory.SkipHidden,
	}, e.logger)

	// Both inventories must be complete before reconciling.
	var (
		srcInv, dstInv     inventory.Inventory
		srcStats, dstStats inventory.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		srcInv, srcStats, err = builder.BuildWithStats(gctx, srcRoot)
		if err != nil {
			return fmt.Errorf("failed to build source inventory: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		dstInv, dstStats, err = builder.BuildWithStats(gctx, dstRoot)
		if err != nil {
			return fmt.Errorf("failed to build destination inventory: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("inventories built",
		"algorithm", h.Algorithm(),
		"source_files", srcStats.Files,
		"source_contents", len(srcInv),
		"dest_files", dstStats.Files,
		"dest_contents", len(dstInv))
	if e.logger.Enabled(ctx, slog.LevelDebug) {
		e.logger.Debug("source contents", "names", srcInv.Names())
		e.logger.Debug("destination contents", "names", dstInv.Names())
	}

	return &Plan{
		Actions: reconcile.Schedule(reconcile.Reconcile(srcInv, dstInv, srcRoot, dstRoot)),
		Stats:   InventoryStats{Source: srcStats, Dest: dstStats},
	}, nil
}
