package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schaermu/contentsync/internal/config"
	"github.com/schaermu/contentsync/internal/fsys"
	"github.com/schaermu/contentsync/internal/sync"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	workers   int
	naming    string
	algorithm string

	// Sync flags
	dryRun     bool
	reportPath string
	onError    string

	// Plan flags
	planFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "contentsync",
	Short: "Mirror a directory tree by file content",
	Long: `contentsync makes a destination directory hold exactly the file contents of a
source directory. Files are identified by a digest of their content, so a file
that was only renamed or moved in the source is renamed in the destination
instead of being copied again.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync [SOURCE DEST]",
	Short: "Synchronize the destination with the source",
	Long: `Sync hashes both trees, computes the copy, move and delete actions that make
the destination content-equivalent to the source, and applies them.

Source and destination may be given as arguments or in the config file.`,
	Args: pathArgs,
	RunE: runSync,
}

var planCmd = &cobra.Command{
	Use:   "plan [SOURCE DEST]",
	Short: "Print the actions a sync would perform",
	Long: `Plan hashes both trees and prints the scheduled actions without touching
the destination.`,
	Args: pathArgs,
	RunE: runPlan,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("contentsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/contentsync/config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "number of files hashed in parallel (0 = number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&naming, "naming", "", "inventory naming (relative, flat)")
	rootCmd.PersistentFlags().StringVar(&algorithm, "algorithm", "", "content digest algorithm (sha256, sha1)")

	// Sync command flags
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")
	syncCmd.Flags().StringVar(&reportPath, "report", "", "write a JSON run report to this path")
	syncCmd.Flags().StringVar(&onError, "on-error", "", "failure policy (abort, continue)")

	// Plan command flags
	planCmd.Flags().StringVar(&planFormat, "format", "text", "output format (text, json)")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}

func pathArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("expected SOURCE and DEST, got %d argument(s)", len(args))
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	// Setup logger
	logger := setupLogger(os.Stdout)

	// Load configuration
	cfg, err := loadConfig(cmd, args, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Create sync engine
	engine := sync.NewEngine(cfg, fsys.NewOS(), logger, dryRun)

	// Run sync
	logger.Info("starting sync operation")
	report, err := engine.Run(ctx)
	if err != nil {
		logger.Error("sync failed", "error", err)
		return err
	}

	logger.Info("sync finished",
		"applied", report.Result.Applied,
		"duration", report.Duration())
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	if err := checkPlanFormat(planFormat); err != nil {
		return err
	}

	ctx, cancel := setupSignalHandler()
	defer cancel()

	// The plan itself goes to stdout, so logs go to stderr.
	logger := setupLogger(os.Stderr)

	cfg, err := loadConfig(cmd, args, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	plan, err := sync.NewEngine(cfg, fsys.NewOS(), logger, true).Plan(ctx)
	if err != nil {
		logger.Error("planning failed", "error", err)
		return err
	}

	return renderPlan(cmd.OutOrStdout(), plan.Actions, planFormat)
}

func setupLogger(w io.Writer) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// loadConfig merges the config file, the positional SOURCE DEST arguments and
// any explicitly set flags, in that order of precedence.
func loadConfig(cmd *cobra.Command, args []string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := readConfigFile(logger)
	if err != nil {
		return nil, err
	}

	if len(args) == 2 {
		cfg.Paths.Source = args[0]
		cfg.Paths.Dest = args[1]
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Inventory.Workers = workers
	}
	if flags.Changed("naming") {
		cfg.Inventory.Naming = config.Naming(naming)
	}
	if flags.Changed("algorithm") {
		cfg.Hash.Algorithm = algorithm
	}
	if flags.Changed("on-error") {
		cfg.Sync.OnError = config.OnError(onError)
	}
	if flags.Changed("report") {
		cfg.Report.Path = reportPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("configuration loaded",
		"source", cfg.SourceDir(),
		"dest", cfg.DestDir(),
		"algorithm", cfg.Hash.Algorithm,
		"naming", cfg.Inventory.Naming,
		"workers", cfg.Inventory.Workers,
		"on_error", cfg.Sync.OnError)

	return cfg, nil
}

// readConfigFile loads the explicit --config file, or the default one when it
// exists. Without either, built-in defaults are used.
func readConfigFile(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Debug("no home directory, using defaults", "error", err)
			return config.Default(), nil
		}
		configPath = filepath.Join(home, ".config", "contentsync", "config.yaml")
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}

	logger.Info("loading configuration", "path", configPath)
	return config.Load(configPath)
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
