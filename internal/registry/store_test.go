package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	reg := New(now)
	reg.System = SystemInfo{OS: "macos", Distro: "darwin", Nickname: "alice"}
	AddTrackedFiles(&reg, "macos-darwin-alice", []TrackedFile{
		{Name: "zshrc", SourcePath: "/Users/alice/.zshrc", RepoPath: "macos-darwin-alice/zshrc", Tracked: true},
	})

	require.NoError(t, Save(path, reg, now))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, reg.System, loaded.System)
	assert.Equal(t, reg.Dotfiles.TrackedFiles, loaded.Dotfiles.TrackedFiles)
	assert.Equal(t, now, loaded.Metadata.UpdatedAt.UTC())
}

func TestSave_RefreshesUpdatedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	saved := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	reg := New(created)
	require.NoError(t, Save(path, reg, saved))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, created, loaded.Metadata.CreatedAt.UTC())
	assert.Equal(t, saved, loaded.Metadata.UpdatedAt.UTC())
}

func TestSave_RejectsMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)

	reg := New(time.Now())
	reg.Version = ""
	assert.Error(t, Save(path, reg, time.Now()))

	reg = New(time.Now())
	reg.Dotfiles.TrackedFiles["m1"] = MachineFiles{Files: []TrackedFile{
		{Name: "zshrc"}, // missing source path
	}}
	assert.Error(t, Save(path, reg, time.Now()))

	// Nothing was written on either failure.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_RejectsDuplicateSourcePaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	doc := `{
  "version": "1.0.0",
  "dotfiles": {
    "structure": {"type": "single"},
    "trackedFiles": {
      "m1": {"files": [
        {"name": "a", "sourcePath": "/a", "tracked": true},
        {"name": "b", "sourcePath": "/a", "tracked": true}
      ]}
    }
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "more than once")
}

func TestLoad_ToleratesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	doc := `{
  "version": "1.0.0",
  "futureSection": {"anything": true},
  "dotfiles": {"structure": {"type": "single"}}
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", reg.Version)
}

func TestLoadOrInit_MissingFile(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	reg, err := LoadOrInit(filepath.Join(t.TempDir(), Filename), now)
	require.NoError(t, err)
	assert.Equal(t, Version, reg.Version)
	assert.Equal(t, StructureSingle, reg.Dotfiles.Structure.Type)
	assert.Empty(t, reg.Dotfiles.TrackedFiles)
}

func TestLoad_GarbageIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
