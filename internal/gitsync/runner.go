package gitsync

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a git subcommand in a working directory and returns its
// combined output. The controller never inspects repository internals
// directly; it only sees process exit status and output text.
type Runner interface {
	Run(ctx context.Context, repoPath string, args ...string) (string, error)
}

// execRunner implements Runner by shelling out to the git command.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, repoPath string, args ...string) (string, error) {
	full := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		return text, fmt.Errorf("git %s failed: %w: %s", args[0], err, text)
	}
	return text, nil
}
