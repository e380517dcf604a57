//go:build integration

package tier1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/contentsync/internal/testutil"
)

const (
	binaryName     = "contentsync"
	defaultTimeout = 5 * time.Minute
)

// Harness builds the contentsync binary once and runs it against a pair of
// scratch directories.
type Harness struct {
	t      *testing.T
	binary string
	Source string
	Dest   string
}

// NewHarness creates a new test harness with empty source and destination
// directories.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	root := t.TempDir()
	h := &Harness{
		t:      t,
		Source: filepath.Join(root, "source"),
		Dest:   filepath.Join(root, "dest"),
	}
	for _, dir := range []string{h.Source, h.Dest} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return h
}

// BuildBinary compiles cmd/contentsync into a temporary directory
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binary = filepath.Join(h.t.TempDir(), binaryName)
	h.t.Logf("Building %s", h.binary)

	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/contentsync")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// Run executes the binary and returns stdout, stderr and the exit code
func (h *Harness) Run(ctx context.Context, args ...string) (string, string, int, error) {
	h.t.Helper()
	if h.binary == "" {
		return "", "", 0, fmt.Errorf("binary not built")
	}

	cmd := exec.CommandContext(ctx, h.binary, args...)
	// Keep a user config file from leaking into the tests.
	cmd.Env = append(os.Environ(), "HOME="+h.t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustRun executes the binary and fails the test if it returns non-zero
func (h *Harness) MustRun(ctx context.Context, args ...string) (string, string) {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Run(ctx, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout, stderr
}

// Sync runs "contentsync sync" on the harness directories
func (h *Harness) Sync(ctx context.Context, extra ...string) (string, string) {
	h.t.Helper()
	args := append([]string{"sync", "--log-format", "json"}, extra...)
	return h.MustRun(ctx, append(args, h.Source, h.Dest)...)
}

// Plan runs "contentsync plan --format json" and decodes the result
func (h *Harness) Plan(ctx context.Context) PlanOutput {
	h.t.Helper()
	stdout, _ := h.MustRun(ctx, "plan", "--format", "json", "--log-level", "error", h.Source, h.Dest)

	var out PlanOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		h.t.Fatalf("decode plan output: %v\n%s", err, stdout)
	}
	return out
}

// PlanOutput mirrors the JSON printed by "contentsync plan"
type PlanOutput struct {
	Actions []struct {
		Kind   string `json:"kind"`
		Source string `json:"source"`
		Target string `json:"target"`
	} `json:"actions"`
	Counts struct {
		Copy   int `json:"copy"`
		Move   int `json:"move"`
		Delete int `json:"delete"`
	} `json:"counts"`
}

// WriteSource writes files into the source directory
func (h *Harness) WriteSource(files map[string]string) {
	h.t.Helper()
	writeFiles(h.t, h.Source, files)
}

// WriteDest writes files into the destination directory
func (h *Harness) WriteDest(files map[string]string) {
	h.t.Helper()
	writeFiles(h.t, h.Dest, files)
}

// Reset empties both directories
func (h *Harness) Reset() {
	h.t.Helper()
	for _, dir := range []string{h.Source, h.Dest} {
		if err := os.RemoveAll(dir); err != nil {
			h.t.Fatalf("remove %s: %v", dir, err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			h.t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
}

// ReadDest returns every regular file in the destination
func (h *Harness) ReadDest() map[string]string {
	h.t.Helper()
	return readFiles(h.t, h.Dest)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func readFiles(t *testing.T, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("read %s: %v", root, err)
	}
	return files
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
