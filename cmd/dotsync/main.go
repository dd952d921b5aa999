package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotsync/dotsync/internal/archive"
	"github.com/dotsync/dotsync/internal/backup"
	"github.com/dotsync/dotsync/internal/collector"
	"github.com/dotsync/dotsync/internal/config"
	"github.com/dotsync/dotsync/internal/gitsync"
	"github.com/dotsync/dotsync/internal/prompt"
	"github.com/dotsync/dotsync/internal/ux"
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
	dryRun    bool
	assumeYes bool
	branch    string

	// Cleanup command flags
	olderThanDays int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dotsync",
	Short: "Back up and restore machine configuration through a shared Git repository",
	Long: `dotsync backs up dotfiles and machine configuration into a Git repository
shared by multiple machines.

Every machine contributes its own section to a shared registry; merges are
non-destructive, and any file about to be overwritten is archived first so
it can always be recovered.`,
	SilenceUsage: true,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up this machine's configuration into the repository",
	Long: `Backup collects a snapshot of this machine (system info, dotfiles, package
listings), copies tracked files into the repository, merges the snapshot
into the shared registry, and pushes the result.

Files already in the repository are archived before they are overwritten.
Transient network failures during push are retried with backoff.`,
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore this machine's tracked files from the repository",
	Long: `Restore copies this machine's tracked files from the repository back into
place. Every local file is archived before it is overwritten, and the
operation asks for confirmation unless --yes is given.`,
	RunE: runRestore,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch, pull and push the repository without copying files",
	RunE:  runSync,
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and manage the local safety archive",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived files, newest first",
	RunE:  runArchiveList,
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Restore the most recent archived copy of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveRestore,
}

var archiveCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete archived copies older than the retention threshold",
	RunE:  runArchiveCleanup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dotsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dotsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	for _, cmd := range []*cobra.Command{backupCmd, restoreCmd} {
		cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")
		cmd.Flags().BoolVar(&assumeYes, "yes", false, "answer yes to all prompts")
	}
	for _, cmd := range []*cobra.Command{backupCmd, restoreCmd, syncCmd} {
		cmd.Flags().StringVar(&branch, "branch", "", "branch to sync against (default: configured branch)")
	}

	archiveCleanupCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "delete backups older than this many days (default: configured retention)")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)
	archiveCmd.AddCommand(archiveCleanupCmd)

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := newEngine(cfg, logger)
	summary, err := engine.Backup(ctx)
	if err != nil {
		logger.Error("backup failed", "error", err)
		return err
	}

	fmt.Println(ux.RenderSummary(runSummary(summary)))
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := newEngine(cfg, logger)
	summary, err := engine.Restore(ctx)
	if err != nil {
		logger.Error("restore failed", "error", err)
		return err
	}

	fmt.Println(ux.RenderSummary(runSummary(summary)))
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := newEngine(cfg, logger)
	summary, err := engine.Sync(ctx)
	if err != nil {
		logger.Error("sync failed", "error", err)
		return err
	}

	if summary.PushRetries > 0 {
		fmt.Println(ux.Warningf("push succeeded after %d retries", summary.PushRetries))
	} else {
		fmt.Println(ux.Successf("repository in sync"))
	}
	return nil
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store := archive.NewStore(cfg.Archive.Dir, logger)
	entries, err := store.ListAll(true)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println(ux.Styles.Muted.Render("archive is empty"))
		return nil
	}
	for _, e := range entries {
		fmt.Println(ux.RenderEntry(e.Filename, e.Location, e.BackedUpAt, e.OriginalSize))
	}
	return nil
}

func runArchiveRestore(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store := archive.NewStore(cfg.Archive.Dir, logger)
	entries, err := store.FindEntriesFor(args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no archived copies of %s", args[0])
	}

	// Entries are most recent first; restoring keeps the backup around.
	entry := entries[0]
	if err := store.Restore(entry, false); err != nil {
		return err
	}
	fmt.Println(ux.Successf("restored %s from %s", entry.Location, entry.BackupFilename))
	return nil
}

func runArchiveCleanup(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	days := olderThanDays
	if days <= 0 {
		days = cfg.Archive.RetentionDays
	}

	store := archive.NewStore(cfg.Archive.Dir, logger)
	cleaned, err := store.Cleanup(days)
	if err != nil {
		return err
	}
	fmt.Println(ux.Successf("removed %d archived copies older than %d days", cleaned, days))
	return nil
}

func newEngine(cfg *config.Config, logger *slog.Logger) *backup.Engine {
	coll := collector.NewHostCollector(logger, cfg.Machine.Nickname)
	store := archive.NewStore(cfg.Archive.Dir, logger)
	controller := gitsync.NewController(logger)

	var prompter prompt.Interactor = prompt.NewStdio(os.Stdin, os.Stdout)
	if assumeYes {
		prompter = prompt.NonInteractive{Answer: true}
	}

	return backup.NewEngine(cfg, coll, store, controller, prompter, logger, dryRun)
}

func runSummary(s *backup.Summary) ux.RunSummary {
	return ux.RunSummary{
		Machine:      s.MachineID,
		Branch:       s.Branch,
		FilesCopied:  s.FilesCopied,
		FilesSkipped: s.FilesSkipped,
		Archived:     s.Archived,
		PushRetries:  s.PushRetries,
		DryRun:       s.DryRun,
	}
}

func setupLogger() *slog.Logger {
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
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if branch != "" {
		cfg.Repo.Branch = branch
	}

	logger.Debug("configuration loaded",
		"repo", cfg.Repo.Path,
		"remote", cfg.Repo.Remote,
		"branch", cfg.Repo.Branch,
		"archive_dir", cfg.Archive.Dir)

	return cfg, nil
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
