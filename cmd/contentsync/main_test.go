package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/contentsync/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// resetFlags restores every package-level flag variable after the test.
func resetFlags(t *testing.T) {
	t.Helper()
	origCfgFile, origLevel, origFormat := cfgFile, logLevel, logFormat
	origWorkers, origNaming, origAlgorithm := workers, naming, algorithm
	origDryRun, origReport, origOnError, origPlanFormat := dryRun, reportPath, onError, planFormat
	t.Cleanup(func() {
		cfgFile, logLevel, logFormat = origCfgFile, origLevel, origFormat
		workers, naming, algorithm = origWorkers, origNaming, origAlgorithm
		dryRun, reportPath, onError, planFormat = origDryRun, origReport, origOnError, origPlanFormat
	})
}

// freshCommand returns a command carrying the same flags as the real ones
// without sharing their parsed state.
func freshCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&workers, "workers", 0, "")
	cmd.Flags().StringVar(&naming, "naming", "", "")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "")
	cmd.Flags().StringVar(&onError, "on-error", "", "")
	cmd.Flags().StringVar(&reportPath, "report", "", "")
	return cmd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSetupLogger(t *testing.T) {
	resetFlags(t)

	for _, tc := range []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "debug/text", logLevel: "debug", logFormat: "text"},
		{name: "info/json", logLevel: "info", logFormat: "json"},
		{name: "warn/text", logLevel: "warn", logFormat: "text"},
		{name: "error/text", logLevel: "error", logFormat: "text"},
		{name: "unknown/text", logLevel: "unknown", logFormat: "text"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logLevel = tc.logLevel
			logFormat = tc.logFormat

			var buf bytes.Buffer
			logger := setupLogger(&buf)
			require.NotNil(t, logger)

			logger.Error("logger check")
			assert.Contains(t, buf.String(), "logger check")
		})
	}
}

func TestSetupLogger_JSON(t *testing.T) {
	resetFlags(t)
	logLevel, logFormat = "info", "json"

	var buf bytes.Buffer
	setupLogger(&buf).Info("hello", "dest", "/backup")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "/backup", entry["dest"])
}

func TestLoadConfig_WithExplicitPath(t *testing.T) {
	resetFlags(t)

	tmpDir := t.TempDir()
	configContent := `paths:
  source: "` + filepath.Join(tmpDir, "src") + `"
  dest: "` + filepath.Join(tmpDir, "dst") + `"
hash:
  algorithm: "sha1"
inventory:
  naming: "flat"
`
	cfgFile = filepath.Join(tmpDir, "config.yaml")
	writeFile(t, cfgFile, configContent)

	cfg, err := loadConfig(freshCommand(t), nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "src"), cfg.Paths.Source)
	assert.Equal(t, "sha1", cfg.Hash.Algorithm)
	assert.Equal(t, config.NamingFlat, cfg.Inventory.Naming)
}

func TestLoadConfig_ArgsAndFlagsOverride(t *testing.T) {
	resetFlags(t)

	tmpDir := t.TempDir()
	cfgFile = filepath.Join(tmpDir, "config.yaml")
	writeFile(t, cfgFile, `paths:
  source: /from/file
  dest: /to/file
sync:
  on_error: abort
`)

	cmd := freshCommand(t)
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "3", "--on-error", "continue", "--algorithm", "sha1"}))

	src, dst := filepath.Join(tmpDir, "a"), filepath.Join(tmpDir, "b")
	cfg, err := loadConfig(cmd, []string{src, dst}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, src, cfg.Paths.Source)
	assert.Equal(t, dst, cfg.Paths.Dest)
	assert.Equal(t, 3, cfg.Inventory.Workers)
	assert.Equal(t, config.OnErrorContinue, cfg.Sync.OnError)
	assert.Equal(t, "sha1", cfg.Hash.Algorithm)
	// Untouched flags keep the defaults.
	assert.Equal(t, config.NamingRelative, cfg.Inventory.Naming)
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	resetFlags(t)
	cfgFile = ""
	t.Setenv("HOME", t.TempDir())

	tmpDir := t.TempDir()
	cfg, err := loadConfig(freshCommand(t), []string{filepath.Join(tmpDir, "a"), filepath.Join(tmpDir, "b")}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "sha256", cfg.Hash.Algorithm)
	assert.Equal(t, config.OnErrorAbort, cfg.Sync.OnError)
}

func TestLoadConfig_Errors(t *testing.T) {
	resetFlags(t)
	t.Setenv("HOME", t.TempDir())

	t.Run("missing explicit file", func(t *testing.T) {
		cfgFile = filepath.Join(t.TempDir(), "nonexistent.yaml")
		_, err := loadConfig(freshCommand(t), []string{"/a", "/b"}, testLogger())
		assert.Error(t, err)
	})

	t.Run("no paths", func(t *testing.T) {
		cfgFile = ""
		_, err := loadConfig(freshCommand(t), nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("nested paths", func(t *testing.T) {
		cfgFile = ""
		_, err := loadConfig(freshCommand(t), []string{"/data", "/data/backup"}, testLogger())
		assert.Error(t, err)
	})

	t.Run("invalid naming flag", func(t *testing.T) {
		cfgFile = ""
		cmd := freshCommand(t)
		require.NoError(t, cmd.ParseFlags([]string{"--naming", "tree"}))
		_, err := loadConfig(cmd, []string{"/a", "/b"}, testLogger())
		assert.Error(t, err)
	})
}

func TestPathArgs(t *testing.T) {
	assert.NoError(t, pathArgs(syncCmd, nil))
	assert.NoError(t, pathArgs(syncCmd, []string{"/a", "/b"}))
	assert.Error(t, pathArgs(syncCmd, []string{"/a"}))
	assert.Error(t, pathArgs(syncCmd, []string{"/a", "/b", "/c"}))
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, cancel := setupSignalHandler()
	if ctx == nil {
		t.Fatal("setupSignalHandler returned nil context")
	}

	cancel()

	<-ctx.Done()
	if err := ctx.Err(); err == nil {
		t.Fatal("expected context error after cancel, got nil")
	}
}

func TestRunPlan(t *testing.T) {
	resetFlags(t)
	cfgFile = ""
	logLevel = "error"
	planFormat = "json"
	t.Setenv("HOME", t.TempDir())

	tmpDir := t.TempDir()
	src, dst := filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "dst")
	writeFile(t, filepath.Join(src, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dst, "old.txt"), "alpha")
	writeFile(t, filepath.Join(dst, "stale.txt"), "stale")

	var out bytes.Buffer
	planCmd.SetOut(&out)
	t.Cleanup(func() { planCmd.SetOut(nil) })

	require.NoError(t, runPlan(planCmd, []string{src, dst}))

	var got planOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Counts.Move)
	assert.Equal(t, 1, got.Counts.Delete)
	assert.Zero(t, got.Counts.Copy)

	// Planning never touches the destination.
	_, err := os.Stat(filepath.Join(dst, "stale.txt"))
	assert.NoError(t, err)
}

func TestRunPlan_UnknownFormatFailsFirst(t *testing.T) {
	resetFlags(t)
	cfgFile = ""
	logLevel = "error"
	planFormat = "xml"
	t.Setenv("HOME", t.TempDir())

	// Neither root exists, so any error other than the format one means
	// the trees were looked at first.
	missing := filepath.Join(t.TempDir(), "missing")
	err := runPlan(planCmd, []string{missing + "-src", missing + "-dst"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plan format")
}

func TestCheckPlanFormat(t *testing.T) {
	for _, format := range []string{"text", "json", ""} {
		assert.NoError(t, checkPlanFormat(format), format)
	}
	assert.Error(t, checkPlanFormat("yaml"))
}

func TestRunSync(t *testing.T) {
	resetFlags(t)
	cfgFile = ""
	logLevel = "error"
	t.Setenv("HOME", t.TempDir())

	tmpDir := t.TempDir()
	src, dst := filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "dst")
	writeFile(t, filepath.Join(src, "nested", "a.txt"), "alpha")
	require.NoError(t, os.MkdirAll(dst, 0o755))

	require.NoError(t, runSync(syncCmd, []string{src, dst}))

	data, err := os.ReadFile(filepath.Join(dst, "nested", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
}

func TestVersionCmd(t *testing.T) {
	t.Helper()
	// versionCmd.Run simply prints version info; should not panic.
	versionCmd.Run(versionCmd, []string{})
}
