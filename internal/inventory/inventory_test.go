package inventory

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/contentsync/internal/hasher"
	"github.com/schaermu/contentsync/internal/syncerr"
	"github.com/schaermu/contentsync/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newBuilder(t *testing.T, mem billy.Filesystem, opts Options) *Builder {
	t.Helper()
	h, err := hasher.New(hasher.SHA256)
	require.NoError(t, err)
	return NewBuilder(mem, h, opts, testLogger())
}

func digestOf(t *testing.T, content string) hasher.Digest {
	t.Helper()
	h, err := hasher.New(hasher.SHA256)
	require.NoError(t, err)
	d, err := h.SumReader(strings.NewReader(content))
	require.NoError(t, err)
	return d
}

func TestBuild_Relative(t *testing.T) {
	mem := memfs.New()
	testutil.WriteTree(t, mem, "/src", map[string]string{
		"a.txt":       "alpha",
		"b.txt":       "beta",
		"sub/c.txt":   "gamma",
		"sub/d/e.bin": "epsilon",
	})

	inv, err := newBuilder(t, mem, Options{Naming: NamingRelative, Workers: 2}).Build(context.Background(), "/src")
	require.NoError(t, err)

	assert.Equal(t, Inventory{
		digestOf(t, "alpha"):   "a.txt",
		digestOf(t, "beta"):    "b.txt",
		digestOf(t, "gamma"):   "sub/c.txt",
		digestOf(t, "epsilon"): "sub/d/e.bin",
	}, inv)
}

func TestBuild_Flat(t *testing.T) {
	mem := memfs.New()
	testutil.WriteTree(t, mem, "/src", map[string]string{
		"a.txt":     "alpha",
		"sub/c.txt": "gamma",
	})

	inv, err := newBuilder(t, mem, Options{Naming: NamingFlat}).Build(context.Background(), "/src")
	require.NoError(t, err)

	assert.Equal(t, "a.txt", inv[digestOf(t, "alpha")])
	assert.Equal(t, "c.txt", inv[digestOf(t, "gamma")])
}

func TestBuild_DuplicateContentKeepsLastEnumerated(t *testing.T) {
	mem := memfs.New()
	testutil.WriteTree(t, mem, "/src", map[string]string{
		"a.txt":     "same",
		"m.txt":     "same",
		"z.txt":     "same",
		"other.txt": "other",
	})

	// Many workers so completion order differs from walk order.
	inv, stats, err := newBuilder(t, mem, Options{Workers: 8}).BuildWithStats(context.Background(), "/src")
	require.NoError(t, err)

	assert.Len(t, inv, 2)
	assert.Equal(t, "z.txt", inv[digestOf(t, "same")])
	assert.Equal(t, Stats{Files: 4, Duplicates: 2}, stats)
}

func TestBuild_EmptyTree(t *testing.T) {
	mem := memfs.New()
	require.NoError(t, mem.MkdirAll("/empty", 0755))

	inv, err := newBuilder(t, mem, Options{}).Build(context.Background(), "/empty")
	require.NoError(t, err)
	assert.Empty(t, inv)
}

func TestBuild_RootErrors(t *testing.T) {
	mem := memfs.New()
	testutil.WriteTree(t, mem, "/src", map[string]string{"file.txt": "x"})
	b := newBuilder(t, mem, Options{})

	_, err := b.Build(context.Background(), "/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = b.Build(context.Background(), "/src/file.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrNotADirectory))
}

func TestBuild_Cancelled(t *testing.T) {
	mem := memfs.New()
	testutil.WriteTree(t, mem, "/src", map[string]string{"a.txt": "a", "b.txt": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv, err := newBuilder(t, mem, Options{Workers: 1}).Build(ctx, "/src")
	assert.Nil(t, inv)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := newBuilder(t, memfs.New(), Options{})
	assert.Equal(t, NamingRelative, b.opts.Naming)
	assert.Positive(t, b.opts.Workers)
}

func TestInventory_Names(t *testing.T) {
	inv := Inventory{"h2": "b.txt", "h1": "a.txt", "h3": "c/d.txt"}
	assert.Equal(t, []string{"a.txt", "b.txt", "c/d.txt"}, inv.Names())
}
