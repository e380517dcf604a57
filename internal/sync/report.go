package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"

	"github.com/schaermu/contentsync/internal/executor"
	"github.com/schaermu/contentsync/internal/inventory"
	"github.com/schaermu/contentsync/internal/reconcile"
)

// Report describes a single sync run
type Report struct {
	RunID      string           `json:"run_id"`
	Source     string           `json:"source"`
	Dest       string           `json:"dest"`
	Algorithm  string           `json:"algorithm"`
	Naming     string           `json:"naming"`
	DryRun     bool             `json:"dry_run"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Inventory  InventoryStats   `json:"inventory"`
	Planned    reconcile.Counts `json:"planned"`
	Result     *executor.Result `json:"result"`
	Error      string           `json:"error,omitempty"`
}

// InventoryStats holds the scan statistics of both trees
type InventoryStats struct {
	Source inventory.Stats `json:"source"`
	Dest   inventory.Stats `json:"dest"`
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Write stores the report as indented JSON at path on the host filesystem,
// replacing any previous report atomically. The report is a host artifact
// even when the Engine syncs trees on another billy.Filesystem.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
