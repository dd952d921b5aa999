package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
repo:
  path: /home/alice/dotfiles
  branch: machines
machine:
  nickname: alice
archive:
  dir: /home/alice/.dotsync/archive
  retention_days: 14
sync:
  max_retries: 2
  set_upstream: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Repo.Path != "/home/alice/dotfiles" {
		t.Errorf("Repo.Path = %q, want /home/alice/dotfiles", cfg.Repo.Path)
	}
	if cfg.Repo.Remote != "origin" {
		t.Errorf("Repo.Remote = %q, want default origin", cfg.Repo.Remote)
	}
	if cfg.Repo.Branch != "machines" {
		t.Errorf("Repo.Branch = %q, want machines", cfg.Repo.Branch)
	}
	if cfg.Machine.Nickname != "alice" {
		t.Errorf("Machine.Nickname = %q, want alice", cfg.Machine.Nickname)
	}
	if cfg.Archive.RetentionDays != 14 {
		t.Errorf("Archive.RetentionDays = %d, want 14", cfg.Archive.RetentionDays)
	}
	if cfg.Sync.MaxRetries != 2 {
		t.Errorf("Sync.MaxRetries = %d, want 2", cfg.Sync.MaxRetries)
	}
	if !cfg.Sync.SetUpstream {
		t.Error("Sync.SetUpstream = false, want true")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
repo:
  path: /home/alice/dotfiles
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Repo.Remote != "origin" {
		t.Errorf("Repo.Remote = %q, want origin", cfg.Repo.Remote)
	}
	if cfg.Repo.Branch != "main" {
		t.Errorf("Repo.Branch = %q, want main", cfg.Repo.Branch)
	}
	if cfg.Archive.Dir == "" || !filepath.IsAbs(cfg.Archive.Dir) {
		t.Errorf("Archive.Dir = %q, want absolute default", cfg.Archive.Dir)
	}
	if cfg.Archive.RetentionDays != 30 {
		t.Errorf("Archive.RetentionDays = %d, want 30", cfg.Archive.RetentionDays)
	}
	if cfg.Sync.MaxRetries != 4 {
		t.Errorf("Sync.MaxRetries = %d, want 4", cfg.Sync.MaxRetries)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("DOTSYNC_TEST_REPO", "/srv/dotfiles")

	path := writeConfig(t, `
repo:
  path: $DOTSYNC_TEST_REPO
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo.Path != "/srv/dotfiles" {
		t.Errorf("Repo.Path = %q, want /srv/dotfiles", cfg.Repo.Path)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	path := writeConfig(t, `
repo:
  path: ~/dotfiles
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := filepath.Join(home, "dotfiles")
	if cfg.Repo.Path != want {
		t.Errorf("Repo.Path = %q, want %q", cfg.Repo.Path, want)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing repo path",
			content: "machine:\n  nickname: alice\n",
			wantErr: "repo.path is required",
		},
		{
			name:    "relative repo path",
			content: "repo:\n  path: dotfiles\n",
			wantErr: "must be an absolute path",
		},
		{
			name:    "relative archive dir",
			content: "repo:\n  path: /home/a/dotfiles\narchive:\n  dir: archive\n",
			wantErr: "archive.dir must be an absolute path",
		},
		{
			name:    "negative retention",
			content: "repo:\n  path: /home/a/dotfiles\narchive:\n  retention_days: -1\n",
			wantErr: "retention_days must not be negative",
		},
		{
			name:    "negative retries",
			content: "repo:\n  path: /home/a/dotfiles\nsync:\n  max_retries: -2\n",
			wantErr: "max_retries must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "repo: [not a map\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{Repo: RepoConfig{Path: "/home/alice/dotfiles"}}

	if got := cfg.RegistryPath(); got != "/home/alice/dotfiles/registry.json" {
		t.Errorf("RegistryPath() = %q", got)
	}
	if got := cfg.DotfilesDir(); got != "/home/alice/dotfiles/dotfiles" {
		t.Errorf("DotfilesDir() = %q", got)
	}
}
