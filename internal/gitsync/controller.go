package gitsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultMaxRetries bounds how many times a transient network failure is
// retried before giving up.
const DefaultMaxRetries = 4

// backupBranchPrefix marks ephemeral snapshot branches created by the
// backup workflow; they are never user-facing checkout targets.
const backupBranchPrefix = "backup-"

// Options configures one fetch/pull/push invocation.
type Options struct {
	Remote      string
	Branch      string
	SetUpstream bool
	MaxRetries  int
}

func (o Options) remote() string {
	if o.Remote == "" {
		return "origin"
	}
	return o.Remote
}

func (o Options) maxRetries() int {
	if o.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return o.MaxRetries
}

// Result is the structured outcome of a sync operation. Retries counts the
// retry attempts actually consumed, excluding the final failed attempt, so
// callers can tell "succeeded after N retries" from "never retried".
type Result struct {
	Success bool
	Retries int
	Err     error
}

// Controller wraps git subprocess invocations with retry/backoff
// classification and branch operations. Transient network failures are
// retried with exponentially growing delays; everything else fails
// immediately with the repository left in its prior state.
type Controller struct {
	runner Runner
	logger *slog.Logger
	sleep  func(time.Duration)
}

// NewController creates a controller that shells out to the git command.
func NewController(logger *slog.Logger) *Controller {
	return &Controller{runner: execRunner{}, logger: logger, sleep: time.Sleep}
}

// NewControllerWithRunner creates a controller with a custom runner,
// used by tests to inject failures.
func NewControllerWithRunner(runner Runner, logger *slog.Logger) *Controller {
	return &Controller{runner: runner, logger: logger, sleep: time.Sleep}
}

// Fetch runs git fetch against the remote, retrying transient failures.
func (c *Controller) Fetch(ctx context.Context, repoPath string, opts Options) Result {
	args := []string{"fetch", opts.remote()}
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}
	return c.withRetry(ctx, repoPath, "fetch", opts, args)
}

// Pull runs git pull against the remote, retrying transient failures.
// Callers may treat a failed pull as non-fatal and continue with the stale
// local copy.
func (c *Controller) Pull(ctx context.Context, repoPath string, opts Options) Result {
	args := []string{"pull", opts.remote()}
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}
	return c.withRetry(ctx, repoPath, "pull", opts, args)
}

// Push runs git push against the remote, retrying transient failures.
func (c *Controller) Push(ctx context.Context, repoPath string, opts Options) Result {
	args := []string{"push"}
	if opts.SetUpstream {
		args = append(args, "--set-upstream")
	}
	args = append(args, opts.remote())
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}
	return c.withRetry(ctx, repoPath, "push", opts, args)
}

// withRetry is the shared retry state machine. Each failed attempt is
// classified; a network failure with attempts left sleeps 2^attempt seconds
// (2s, 4s, 8s, 16s) and re-attempts. Any other failure, or running out of
// attempts, fails immediately without further sleeping.
func (c *Controller) withRetry(ctx context.Context, repoPath, op string, opts Options, args []string) Result {
	maxRetries := opts.maxRetries()
	retries := 0

	for attempt := 1; ; attempt++ {
		output, err := c.runner.Run(ctx, repoPath, args...)
		if err == nil {
			if retries > 0 {
				c.logger.Info("git operation succeeded after retries", "op", op, "retries", retries)
			}
			return Result{Success: true, Retries: retries}
		}

		kind := classify(output + " " + err.Error())
		if kind != KindNetwork || attempt > maxRetries {
			c.logger.Error("git operation failed", "op", op, "kind", kind.String(), "retries", retries, "error", err)
			return Result{Retries: retries, Err: err}
		}

		delay := time.Duration(1<<uint(attempt)) * time.Second
		c.logger.Warn("transient network failure, will retry",
			"op", op, "attempt", attempt, "max_retries", maxRetries, "delay", delay, "error", err)
		c.sleep(delay)
		retries++
	}
}

// CurrentBranch returns the branch the repository currently has checked out.
func (c *Controller) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	out, err := c.runner.Run(ctx, repoPath, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// AllBranches returns the union of local and remote branch names, excluding
// ephemeral backup-* snapshot branches and the symbolic remote HEAD pointer.
// Remote names are reported without their remote prefix so the list holds
// checkout targets.
func (c *Controller) AllBranches(ctx context.Context, repoPath string) ([]string, error) {
	local, err := c.runner.Run(ctx, repoPath, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	remote, err := c.runner.Run(ctx, repoPath, "branch", "-r", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var branches []string
	add := func(name string) {
		if name == "" || name == "HEAD" || strings.HasPrefix(name, backupBranchPrefix) {
			return
		}
		if !seen[name] {
			seen[name] = true
			branches = append(branches, name)
		}
	}

	for _, line := range strings.Split(local, "\n") {
		add(strings.TrimSpace(line))
	}
	for _, line := range strings.Split(remote, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.Contains(name, "->") {
			continue
		}
		// Strip the remote prefix ("origin/main" -> "main").
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		add(name)
	}
	return branches, nil
}

// CheckoutBranch switches the repository to the named branch. With
// createIfMissing it creates and switches in one underlying operation, so
// a failure leaves the repository on its prior branch with no partial
// checkout state.
func (c *Controller) CheckoutBranch(ctx context.Context, repoPath, name string, createIfMissing bool) error {
	exists, err := c.branchExists(ctx, repoPath, name)
	if err != nil {
		return err
	}

	var args []string
	switch {
	case exists:
		args = []string{"checkout", name}
	case createIfMissing:
		args = []string{"checkout", "-b", name}
	default:
		return fmt.Errorf("branch %q does not exist", name)
	}

	if _, err := c.runner.Run(ctx, repoPath, args...); err != nil {
		return fmt.Errorf("checkout %s: %w (repository left on its previous branch)", name, err)
	}
	c.logger.Info("checked out branch", "branch", name, "created", !exists)
	return nil
}

// branchExists checks for a local branch of the given name. A non-zero exit
// simply means the ref is absent.
func (c *Controller) branchExists(ctx context.Context, repoPath, name string) (bool, error) {
	_, err := c.runner.Run(ctx, repoPath, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Stage adds the given paths to the git index; with no paths it stages
// everything.
func (c *Controller) Stage(ctx context.Context, repoPath string, paths ...string) error {
	args := []string{"add"}
	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, paths...)
	}
	_, err := c.runner.Run(ctx, repoPath, args...)
	return err
}

// Commit records staged changes with the given message.
func (c *Controller) Commit(ctx context.Context, repoPath, message string) error {
	_, err := c.runner.Run(ctx, repoPath, "commit", "-m", message)
	return err
}

// HasChanges reports whether the working tree or index differ from HEAD.
func (c *Controller) HasChanges(ctx context.Context, repoPath string) (bool, error) {
	out, err := c.runner.Run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}
