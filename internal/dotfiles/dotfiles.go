package dotfiles

import (
	"os"
	"path/filepath"
	"strings"
)

// KnownPatterns are the well-known dotfiles discovered under a home
// directory, relative to it. Directories are not listed; individual files
// keep archive and copy operations simple.
var KnownPatterns = []string{
	".zshrc",
	".zprofile",
	".bashrc",
	".bash_profile",
	".profile",
	".gitconfig",
	".gitignore_global",
	".tmux.conf",
	".vimrc",
	".editorconfig",
	".config/nvim/init.lua",
	".config/nvim/init.vim",
	".config/fish/config.fish",
	".config/starship.toml",
	".config/alacritty/alacritty.toml",
	".config/kitty/kitty.conf",
	".config/ghostty/config",
	".ssh/config",
	// Secret-classified: discovered and recorded, never copied to the repo.
	".aws/credentials",
	".netrc",
}

// secretPrefixes mark paths whose contents must never be copied into the
// shared repository. They are still archived locally before a restore
// touches them.
var secretPrefixes = []string{
	".ssh/id_",
	".aws/credentials",
	".netrc",
	".gnupg/",
	".config/gh/hosts.yml",
}

// Candidate is a dotfile found on disk, ready to be tracked.
type Candidate struct {
	// Name is the repo-safe identifier derived from the relative path.
	Name string
	// SourcePath is the absolute location in the home directory.
	SourcePath string
}

// Discover returns the known dotfiles that actually exist under home.
// Symlinks are reported as-is; the caller decides whether to follow them.
func Discover(home string) ([]Candidate, error) {
	var candidates []Candidate
	for _, rel := range KnownPatterns {
		abs := filepath.Join(home, rel)
		if _, err := os.Lstat(abs); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		candidates = append(candidates, Candidate{
			Name:       RepoName(rel),
			SourcePath: abs,
		})
	}
	return candidates, nil
}

// IsSecret reports whether the home-relative path holds credentials or key
// material that must stay out of the shared repository.
func IsSecret(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for _, prefix := range secretPrefixes {
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	return false
}

// RepoName converts a home-relative path to a flat repo-safe file name.
// For example: .config/nvim/init.lua -> config-nvim-init.lua
func RepoName(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "./")
	rel = strings.TrimPrefix(rel, ".")
	rel = strings.ReplaceAll(rel, "/", "-")
	rel = strings.ReplaceAll(rel, "--", "-")
	return strings.TrimPrefix(rel, "-")
}

// HomeRelative returns the path of abs relative to home, for registry
// bookkeeping and secret classification.
func HomeRelative(home, abs string) (string, error) {
	return filepath.Rel(home, abs)
}
