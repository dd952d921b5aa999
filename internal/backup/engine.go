package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/dotsync/dotsync/internal/archive"
	"github.com/dotsync/dotsync/internal/collector"
	"github.com/dotsync/dotsync/internal/config"
	"github.com/dotsync/dotsync/internal/dotfiles"
	"github.com/dotsync/dotsync/internal/gitsync"
	"github.com/dotsync/dotsync/internal/prompt"
	"github.com/dotsync/dotsync/internal/registry"
)

// Archiver is the safety-archive surface the engine depends on.
type Archiver interface {
	ArchiveBeforeOverwrite(path string) (*archive.Entry, error)
}

// GitController is the git surface the engine depends on.
type GitController interface {
	Pull(ctx context.Context, repoPath string, opts gitsync.Options) gitsync.Result
	Push(ctx context.Context, repoPath string, opts gitsync.Options) gitsync.Result
	Fetch(ctx context.Context, repoPath string, opts gitsync.Options) gitsync.Result
	Stage(ctx context.Context, repoPath string, paths ...string) error
	Commit(ctx context.Context, repoPath, message string) error
	HasChanges(ctx context.Context, repoPath string) (bool, error)
}

// Summary reports what a run did.
type Summary struct {
	MachineID    string
	Branch       string
	FilesCopied  int
	FilesSkipped int
	Archived     int
	PushRetries  int
	DryRun       bool
}

// Engine orchestrates backup and restore runs. Every run is strictly
// sequential: collect, protect, copy, merge, persist, sync. Targets are
// always archived before they are overwritten or replaced, and the merged
// registry is persisted before anything is pushed.
type Engine struct {
	cfg       *config.Config
	collector collector.Collector
	archive   Archiver
	git       GitController
	prompter  prompt.Interactor
	logger    *slog.Logger
	dryRun    bool

	// home is the directory scanned for dotfiles; defaults to the user's
	// home and is overridden in tests.
	home string
	now  func() time.Time
}

// NewEngine creates a backup engine.
func NewEngine(cfg *config.Config, coll collector.Collector, archiver Archiver, git GitController, prompter prompt.Interactor, logger *slog.Logger, dryRun bool) *Engine {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return &Engine{
		cfg:       cfg,
		collector: coll,
		archive:   archiver,
		git:       git,
		prompter:  prompter,
		logger:    logger,
		dryRun:    dryRun,
		home:      home,
		now:       time.Now,
	}
}

// Backup runs the full backup pipeline: collect a machine fragment, protect
// and copy tracked files into the repository, merge the fragment into the
// shared registry, persist it, then stage, commit and push.
func (e *Engine) Backup(ctx context.Context) (*Summary, error) {
	summary := &Summary{Branch: e.cfg.Repo.Branch, DryRun: e.dryRun}

	frag, err := e.collector.Collect(ctx)
	if err != nil {
		return summary, fmt.Errorf("collect machine snapshot: %w", err)
	}
	machineID := frag.System.MachineID()
	summary.MachineID = machineID

	e.logger.Info("starting backup",
		"machine", machineID,
		"repo", e.cfg.Repo.Path,
		"branch", e.cfg.Repo.Branch,
		"dry_run", e.dryRun)

	candidates, err := dotfiles.Discover(e.home)
	if err != nil {
		return summary, fmt.Errorf("discover dotfiles: %w", err)
	}

	tracked := make([]registry.TrackedFile, 0, len(candidates))
	for _, c := range candidates {
		rel, err := dotfiles.HomeRelative(e.home, c.SourcePath)
		if err != nil {
			rel = c.SourcePath
		}
		tracked = append(tracked, registry.TrackedFile{
			Name:       c.Name,
			SourcePath: c.SourcePath,
			RepoPath:   registry.RepoPathFor(machineID, c.Name),
			Tracked:    !dotfiles.IsSecret(rel),
		})
	}
	registry.AddTrackedFiles(&frag, machineID, tracked)
	if section, ok := frag.Dotfiles.TrackedFiles[machineID]; ok {
		section.CloneLocation = e.cfg.Repo.Path
		frag.Dotfiles.TrackedFiles[machineID] = section
	}

	if e.dryRun {
		e.logBackupPlan(tracked)
		return summary, nil
	}

	// A failed pull degrades to working with the stale local copy; the merge
	// is non-destructive either way and the push will surface divergence.
	if res := e.git.Pull(ctx, e.cfg.Repo.Path, e.syncOptions()); !res.Success {
		e.logger.Warn("pull failed, continuing with local copy", "error", res.Err)
	}

	var staged []string
	for _, tf := range tracked {
		if !tf.Tracked {
			e.logger.Info("skipping secret file, never copied to repo", "file", tf.Name)
			summary.FilesSkipped++
			continue
		}

		target := filepath.Join(e.cfg.DotfilesDir(), filepath.FromSlash(tf.RepoPath))
		entry, err := e.archive.ArchiveBeforeOverwrite(target)
		if err != nil {
			e.logger.Error("could not archive file before overwrite", "target", target, "error", err)
			if !e.prompter.Confirm(fmt.Sprintf("Archiving %s failed; overwrite it unprotected?", target), false) {
				return summary, fmt.Errorf("archive %s: %w (no files were overwritten without protection)", target, err)
			}
		}
		if entry != nil {
			summary.Archived++
		}

		if err := copyFile(tf.SourcePath, target); err != nil {
			return summary, fmt.Errorf("copy %s into repo: %w", tf.SourcePath, err)
		}
		summary.FilesCopied++
		staged = append(staged, filepath.Join("dotfiles", filepath.FromSlash(tf.RepoPath)))
	}

	// Merge and persist before anything is staged so the committed tree
	// always contains the registry that describes it. An unchanged merge is
	// not rewritten; timestamp churn would force an empty commit every run.
	now := e.now().UTC()
	existing, err := registry.LoadOrInit(e.cfg.RegistryPath(), now)
	if err != nil {
		return summary, fmt.Errorf("load registry: %w", err)
	}
	merged := registry.Merge(existing, frag, now)
	if !registryEqual(existing, merged) {
		if err := registry.Save(e.cfg.RegistryPath(), merged, now); err != nil {
			return summary, fmt.Errorf("persist registry: %w", err)
		}
	}
	if _, err := os.Stat(e.cfg.RegistryPath()); err == nil {
		staged = append(staged, registry.Filename)
	}

	hasChanges, err := e.git.HasChanges(ctx, e.cfg.Repo.Path)
	if err != nil {
		return summary, fmt.Errorf("check repository status: %w", err)
	}
	if !hasChanges {
		e.logger.Info("nothing changed since last backup, skipping commit")
		return summary, nil
	}

	if err := e.git.Stage(ctx, e.cfg.Repo.Path, staged...); err != nil {
		return summary, fmt.Errorf("stage backup files: %w", err)
	}
	message := fmt.Sprintf("dotsync backup %s (run %s)", machineID, uuid.NewString())
	if err := e.git.Commit(ctx, e.cfg.Repo.Path, message); err != nil {
		return summary, fmt.Errorf("commit backup: %w", err)
	}

	res := e.git.Push(ctx, e.cfg.Repo.Path, e.syncOptions())
	summary.PushRetries = res.Retries
	if !res.Success {
		return summary, fmt.Errorf("push backup: %w (the commit is local; rerun once the remote is reachable)", res.Err)
	}

	e.logger.Info("backup complete",
		"machine", machineID,
		"copied", summary.FilesCopied,
		"archived", summary.Archived,
		"push_retries", summary.PushRetries)
	return summary, nil
}

// Restore copies this machine's tracked files from the repository back into
// the home directory. Every local target is archived before it is replaced.
func (e *Engine) Restore(ctx context.Context) (*Summary, error) {
	summary := &Summary{Branch: e.cfg.Repo.Branch, DryRun: e.dryRun}

	frag, err := e.collector.Collect(ctx)
	if err != nil {
		return summary, fmt.Errorf("collect machine snapshot: %w", err)
	}
	machineID := frag.System.MachineID()
	summary.MachineID = machineID

	reg, err := registry.Load(e.cfg.RegistryPath())
	if err != nil {
		return summary, fmt.Errorf("load registry: %w", err)
	}
	section, ok := reg.Dotfiles.TrackedFiles[machineID]
	if !ok {
		return summary, fmt.Errorf("registry has no files for machine %s", machineID)
	}

	if e.dryRun {
		for _, tf := range section.Files {
			e.logger.Info("[dry-run] would restore", "file", tf.Name, "target", tf.SourcePath)
		}
		return summary, nil
	}

	if !e.prompter.Confirm(fmt.Sprintf("Restore %d files for %s, overwriting local copies?", len(section.Files), machineID), false) {
		return summary, fmt.Errorf("restore cancelled, nothing was changed")
	}

	for _, tf := range section.Files {
		if !tf.Tracked {
			summary.FilesSkipped++
			continue
		}
		source := filepath.Join(e.cfg.DotfilesDir(), filepath.FromSlash(tf.RepoPath))
		if _, err := os.Stat(source); err != nil {
			e.logger.Warn("repo copy missing, skipping", "file", tf.Name, "repo_path", source)
			summary.FilesSkipped++
			continue
		}

		entry, err := e.archive.ArchiveBeforeOverwrite(tf.SourcePath)
		if err != nil {
			e.logger.Error("could not archive file before restore", "target", tf.SourcePath, "error", err)
			if !e.prompter.Confirm(fmt.Sprintf("Archiving %s failed; overwrite it unprotected?", tf.SourcePath), false) {
				return summary, fmt.Errorf("archive %s: %w (restore stopped, remaining files untouched)", tf.SourcePath, err)
			}
		}
		if entry != nil {
			summary.Archived++
		}

		if tf.SymlinkEnabled {
			if err := replaceWithSymlink(source, tf.SourcePath); err != nil {
				return summary, fmt.Errorf("symlink %s: %w", tf.SourcePath, err)
			}
		} else {
			if err := copyFile(source, tf.SourcePath); err != nil {
				return summary, fmt.Errorf("restore %s: %w", tf.SourcePath, err)
			}
		}
		summary.FilesCopied++
	}

	e.logger.Info("restore complete",
		"machine", machineID,
		"restored", summary.FilesCopied,
		"archived", summary.Archived)
	return summary, nil
}

// Sync brings the local repository up to date with the remote and pushes
// any local commits.
func (e *Engine) Sync(ctx context.Context) (*Summary, error) {
	summary := &Summary{Branch: e.cfg.Repo.Branch, DryRun: e.dryRun}

	if e.dryRun {
		e.logger.Info("[dry-run] would fetch, pull and push", "remote", e.cfg.Repo.Remote, "branch", e.cfg.Repo.Branch)
		return summary, nil
	}

	if res := e.git.Fetch(ctx, e.cfg.Repo.Path, e.syncOptions()); !res.Success {
		return summary, fmt.Errorf("fetch: %w", res.Err)
	}
	if res := e.git.Pull(ctx, e.cfg.Repo.Path, e.syncOptions()); !res.Success {
		return summary, fmt.Errorf("pull: %w", res.Err)
	}
	res := e.git.Push(ctx, e.cfg.Repo.Path, e.syncOptions())
	summary.PushRetries = res.Retries
	if !res.Success {
		return summary, fmt.Errorf("push: %w", res.Err)
	}

	e.logger.Info("sync complete", "push_retries", summary.PushRetries)
	return summary, nil
}

func (e *Engine) syncOptions() gitsync.Options {
	return gitsync.Options{
		Remote:      e.cfg.Repo.Remote,
		Branch:      e.cfg.Repo.Branch,
		SetUpstream: e.cfg.Sync.SetUpstream,
		MaxRetries:  e.cfg.Sync.MaxRetries,
	}
}

func (e *Engine) logBackupPlan(tracked []registry.TrackedFile) {
	for _, tf := range tracked {
		if !tf.Tracked {
			e.logger.Info("[dry-run] would record without copying", "file", tf.Name)
			continue
		}
		e.logger.Info("[dry-run] would archive and copy",
			"file", tf.Name,
			"source", tf.SourcePath,
			"repo_path", tf.RepoPath)
	}
	e.logger.Info("dry-run complete, no changes applied")
}

// registryEqual reports whether two documents are identical apart from
// their timestamps.
func registryEqual(a, b registry.Registry) bool {
	a.Metadata = registry.Metadata{}
	b.Metadata = registry.Metadata{}
	return reflect.DeepEqual(a, b)
}

// copyFile copies a file from src to dst with atomic write
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".dotsync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	srcInfo, err := srcFile.Stat()
	if err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(srcInfo.Mode()); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

// replaceWithSymlink removes dst (already archived by the caller) and links
// it to target.
func replaceWithSymlink(target, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, dst)
}
