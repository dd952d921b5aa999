package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IndexVersion is the archive index schema version written by this build.
const IndexVersion = "1.0.0"

// IndexFilename is the index file's name inside the archive directory.
const IndexFilename = "index.json"

// Entry records one archived copy of a file. Location is the absolute
// original path; BackupFilename is the unique name of the copy inside the
// archive directory. A location may appear in multiple entries over its
// history; lookups return the most recent first.
type Entry struct {
	Filename       string    `json:"filename"`
	Location       string    `json:"location"`
	BackedUpAt     time.Time `json:"backedUpAt"`
	BackupFilename string    `json:"backupFilename"`
	OriginalSize   int64     `json:"originalSize"`
	Checksum       string    `json:"checksum,omitempty"`
}

// Index is the archive's persisted catalog. It lives as a single JSON file
// inside the archive directory and is rewritten whole on every change; the
// backup directory is denormalized into it for portability checks.
type Index struct {
	Version         string    `json:"version"`
	BackupDirectory string    `json:"backupDirectory"`
	CreatedAt       time.Time `json:"createdAt"`
	LastUpdatedAt   time.Time `json:"lastUpdatedAt"`
	Entries         []Entry   `json:"entries"`
}

// loadIndex reads the index from the archive directory, returning a fresh
// one when none exists yet. Callers re-read before each mutation rather
// than caching across steps.
func (s *Store) loadIndex() (Index, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IndexFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return Index{
				Version:         IndexVersion,
				BackupDirectory: s.dir,
				CreatedAt:       s.now(),
			}, nil
		}
		return Index{}, fmt.Errorf("read archive index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, fmt.Errorf("parse archive index: %w", err)
	}
	return idx, nil
}

// saveIndex persists the index as a whole-file replacement.
func (s *Store) saveIndex(idx Index) error {
	idx.BackupDirectory = s.dir
	idx.LastUpdatedAt = s.now()
	if idx.Version == "" {
		idx.Version = IndexVersion
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, IndexFilename), data, 0644); err != nil {
		return fmt.Errorf("write archive index: %w", err)
	}
	return nil
}
