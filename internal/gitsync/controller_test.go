package gitsync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a local repo with an initial commit on the given branch.
func initRepo(t *testing.T, dir, branch string) {
	t.Helper()
	cmds := [][]string{
		{"git", "init", "-b", branch, dir},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
			t.Fatalf("%v: %s", err, out)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi\n"), 0644))
	for _, args := range [][]string{
		{"git", "-C", dir, "add", "README"},
		{"git", "-C", dir, "commit", "-m", "initial"},
	} {
		if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
			t.Fatalf("%v: %s", err, out)
		}
	}
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	full := append([]string{"-C", dir}, args...)
	if out, err := exec.Command("git", full...).CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func TestCurrentBranch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo")
	initRepo(t, dir, "main")
	c := NewController(testLogger())

	branch, err := c.CurrentBranch(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestAllBranches_ExcludesBackupBranchesAndRemoteHEAD(t *testing.T) {
	ctx := context.Background()

	// A "remote" repo with a real branch and an ephemeral backup branch.
	remoteDir := filepath.Join(t.TempDir(), "remote")
	initRepo(t, remoteDir, "main")
	gitCmd(t, remoteDir, "branch", "feature")
	gitCmd(t, remoteDir, "branch", "backup-2026-03-02")

	cloneDir := filepath.Join(t.TempDir(), "clone")
	if out, err := exec.Command("git", "clone", remoteDir, cloneDir).CombinedOutput(); err != nil {
		t.Fatalf("clone: %v: %s", err, out)
	}
	gitCmd(t, cloneDir, "branch", "backup-local")

	c := NewController(testLogger())
	branches, err := c.AllBranches(ctx, cloneDir)
	require.NoError(t, err)

	assert.Contains(t, branches, "main")
	assert.Contains(t, branches, "feature")
	for _, b := range branches {
		assert.NotContains(t, b, "HEAD")
		assert.False(t, len(b) >= len(backupBranchPrefix) && b[:len(backupBranchPrefix)] == backupBranchPrefix,
			"backup branch %q leaked into listing", b)
	}
}

func TestCheckoutBranch_CreateIfMissing(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "repo")
	initRepo(t, dir, "main")
	c := NewController(testLogger())

	require.NoError(t, c.CheckoutBranch(ctx, dir, "machines", true))
	branch, err := c.CurrentBranch(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "machines", branch)

	// Checking out an existing branch works without create.
	require.NoError(t, c.CheckoutBranch(ctx, dir, "main", false))
	branch, err = c.CurrentBranch(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestCheckoutBranch_MissingWithoutCreateFails(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "repo")
	initRepo(t, dir, "main")
	c := NewController(testLogger())

	err := c.CheckoutBranch(ctx, dir, "nope", false)
	require.Error(t, err)

	// The repository is still on its prior branch.
	branch, err := c.CurrentBranch(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestStageCommitPush_AgainstLocalRemote(t *testing.T) {
	ctx := context.Background()

	remoteDir := filepath.Join(t.TempDir(), "remote.git")
	if out, err := exec.Command("git", "init", "--bare", "-b", "main", remoteDir).CombinedOutput(); err != nil {
		t.Fatalf("bare init: %v: %s", err, out)
	}

	workDir := filepath.Join(t.TempDir(), "work")
	initRepo(t, workDir, "main")
	gitCmd(t, workDir, "remote", "add", "origin", remoteDir)

	c := NewController(testLogger())

	hasChanges, err := c.HasChanges(ctx, workDir)
	require.NoError(t, err)
	assert.False(t, hasChanges)

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "registry.json"), []byte("{}\n"), 0644))
	hasChanges, err = c.HasChanges(ctx, workDir)
	require.NoError(t, err)
	assert.True(t, hasChanges)

	require.NoError(t, c.Stage(ctx, workDir, "registry.json"))
	require.NoError(t, c.Commit(ctx, workDir, "add registry"))

	res := c.Push(ctx, workDir, Options{Branch: "main", SetUpstream: true})
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Retries)

	// Fetch and pull against the same remote succeed cleanly.
	res = c.Fetch(ctx, workDir, Options{Branch: "main"})
	assert.True(t, res.Success)
	res = c.Pull(ctx, workDir, Options{Branch: "main"})
	assert.True(t, res.Success)
}
