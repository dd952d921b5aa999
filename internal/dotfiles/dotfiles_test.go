package dotfiles

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRepoName(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{".zshrc", "zshrc"},
		{".gitconfig", "gitconfig"},
		{".config/nvim/init.lua", "config-nvim-init.lua"},
		{".config/fish/config.fish", "config-fish-config.fish"},
		{".ssh/config", "ssh-config"},
		{".tmux.conf", "tmux.conf"},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := RepoName(tt.rel); got != tt.want {
				t.Errorf("RepoName(%q) = %q, want %q", tt.rel, got, tt.want)
			}
		})
	}
}

func TestIsSecret(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{".ssh/id_ed25519", true},
		{".ssh/id_rsa", true},
		{".ssh/config", false},
		{".aws/credentials", true},
		{".netrc", true},
		{".gnupg/private-keys-v1.d/key", true},
		{".zshrc", false},
		{".config/gh/hosts.yml", true},
		{".config/nvim/init.lua", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := IsSecret(tt.rel); got != tt.want {
				t.Errorf("IsSecret(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestDiscoverFindsExistingFiles(t *testing.T) {
	home := t.TempDir()

	mustWrite(t, filepath.Join(home, ".zshrc"), "export EDITOR=nvim\n")
	mustWrite(t, filepath.Join(home, ".gitconfig"), "[user]\n\tname = Alice\n")
	mustWrite(t, filepath.Join(home, ".config", "nvim", "init.lua"), "-- nvim\n")

	candidates, err := Discover(home)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(candidates) != 3 {
		t.Fatalf("Discover() returned %d candidates, want 3: %v", len(candidates), candidates)
	}

	byName := make(map[string]Candidate)
	for _, c := range candidates {
		byName[c.Name] = c
	}

	if c, ok := byName["zshrc"]; !ok {
		t.Error("missing candidate zshrc")
	} else if c.SourcePath != filepath.Join(home, ".zshrc") {
		t.Errorf("zshrc SourcePath = %q", c.SourcePath)
	}
	if _, ok := byName["config-nvim-init.lua"]; !ok {
		t.Error("missing candidate config-nvim-init.lua")
	}
}

func TestDiscoverEmptyHome(t *testing.T) {
	candidates, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Discover() returned %d candidates, want 0", len(candidates))
	}
}

func TestDiscoverReportsSymlinks(t *testing.T) {
	home := t.TempDir()
	target := filepath.Join(home, "real-zshrc")
	mustWrite(t, target, "# linked\n")
	if err := os.Symlink(target, filepath.Join(home, ".zshrc")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	candidates, err := Discover(home)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].Name != "zshrc" {
		t.Fatalf("Discover() = %v, want single zshrc candidate", candidates)
	}
}

func TestHomeRelative(t *testing.T) {
	rel, err := HomeRelative("/home/alice", "/home/alice/.config/nvim/init.lua")
	if err != nil {
		t.Fatalf("HomeRelative() error = %v", err)
	}
	if rel != ".config/nvim/init.lua" {
		t.Errorf("HomeRelative() = %q", rel)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
