// Package inventory builds digest-to-name maps describing the content of a
// directory tree.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"

	"github.com/schaermu/contentsync/internal/hasher"
	"github.com/schaermu/contentsync/internal/tree"
)

// Naming selects how a file is named inside an inventory.
type Naming string

const (
	// NamingFlat records the base name only. Files with the same name in
	// different subdirectories collide.
	NamingFlat Naming = "flat"
	// NamingRelative records the slash-separated path below the root.
	NamingRelative Naming = "relative"
)

// Inventory maps each distinct content digest in a tree to the name it is
// stored under. When a tree contains the same content more than once, the
// file enumerated last wins.
type Inventory map[hasher.Digest]string

// Names returns the names in the inventory in ascending order.
func (inv Inventory) Names() []string {
	names := make([]string, 0, len(inv))
	for _, name := range inv {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats describes a completed build.
type Stats struct {
	Files      int `json:"files"`      // regular files hashed
	Duplicates int `json:"duplicates"` // files whose digest was already recorded under another name
}

// Options configures a Builder.
type Options struct {
	Naming     Naming
	Workers    int
	SkipHidden bool
}

// Builder hashes the files of a tree into an Inventory.
type Builder struct {
	fs     billy.Filesystem
	hasher *hasher.Hasher
	opts   Options
	logger *slog.Logger
}

// NewBuilder creates a Builder. Zero-valued options fall back to relative
// naming and one worker per CPU.
func NewBuilder(fs billy.Filesystem, h *hasher.Hasher, opts Options, logger *slog.Logger) *Builder {
	if opts.Naming == "" {
		opts.Naming = NamingRelative
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Builder{
		fs:     fs,
		hasher: h,
		opts:   opts,
		logger: logger,
	}
}

// Build returns the inventory of root.
func (b *Builder) Build(ctx context.Context, root string) (Inventory, error) {
	inv, _, err := b.BuildWithStats(ctx, root)
	return inv, err
}

// BuildWithStats returns the inventory of root along with build statistics.
// Any failure aborts the build; a partial inventory is never returned.
func (b *Builder) BuildWithStats(ctx context.Context, root string) (Inventory, Stats, error) {
	files, err := tree.Discover(b.fs, root, tree.Options{SkipHidden: b.opts.SkipHidden})
	if err != nil {
		return nil, Stats{}, err
	}

	b.logger.Debug("discovered files", "root", root, "count", len(files))

	digests := make([]hasher.Digest, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := b.hasher.Sum(b.fs, path)
			if err != nil {
				return err
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to hash %s: %w", root, err)
	}

	// Fold in walk order so the last enumerated duplicate wins regardless of
	// which worker finished first.
	inv := make(Inventory, len(files))
	stats := Stats{Files: len(files)}
	for i, path := range files {
		name, err := b.name(root, path)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("failed to compute name for %s: %w", path, err)
		}
		if prev, ok := inv[digests[i]]; ok {
			stats.Duplicates++
			b.logger.Debug("duplicate content, keeping later name",
				"digest", digests[i].Short(),
				"dropped", prev,
				"kept", name)
		}
		inv[digests[i]] = name
	}

	return inv, stats, nil
}

func (b *Builder) name(root, path string) (string, error) {
	if b.opts.Naming == NamingFlat {
		return filepath.Base(path), nil
	}
	return tree.RelativePath(root, path)
}
