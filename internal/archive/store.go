package archive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store is the safety archive: a copy-aside directory plus an index of what
// was archived, when, and from where. Any file about to be overwritten or
// replaced by a symlink must pass through ArchiveBeforeOverwrite first.
//
// The store is single-writer by design; there is one interactive session
// driving the pipeline and every index write is read-modify-write of the
// whole file.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first archive.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the archive directory.
func (s *Store) Dir() string {
	return s.dir
}

// ArchiveBeforeOverwrite copies the file at path into the archive and
// records it in the index. When the target does not exist there is nothing
// to protect: it returns (nil, nil) and performs no I/O. The copy happens
// before the index is updated, and the index is persisted before the entry
// is returned, so a non-nil entry means the original bytes are durably
// recoverable. A crash between copy and index append leaves an orphaned
// backup file that age-based cleanup eventually removes.
func (s *Store) ArchiveBeforeOverwrite(path string) (*Entry, error) {
	path = normalizePath(path)

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("refusing to archive directory %s", path)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	when := s.now()
	backupName := s.backupFilename(filepath.Base(path), when)
	backupPath := filepath.Join(s.dir, backupName)

	checksum, size, err := copyFileWithChecksum(path, backupPath)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}

	entry := Entry{
		Filename:       filepath.Base(path),
		Location:       path,
		BackedUpAt:     when,
		BackupFilename: backupName,
		OriginalSize:   size,
		Checksum:       checksum,
	}

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	idx.Entries = append(idx.Entries, entry)
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}

	s.logger.Info("archived file before overwrite",
		"path", path, "backup", backupName, "size", size)
	return &entry, nil
}

// Restore copies the archived bytes back over entry.Location. When
// removeAfterRestore is set, the backing file and its index entry are
// removed afterward, and only after the copy has succeeded.
func (s *Store) Restore(entry Entry, removeAfterRestore bool) error {
	backupPath := filepath.Join(s.dir, entry.BackupFilename)

	if err := os.MkdirAll(filepath.Dir(entry.Location), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if _, _, err := copyFileWithChecksum(backupPath, entry.Location); err != nil {
		return fmt.Errorf("restore %s: %w", entry.Location, err)
	}

	s.logger.Info("restored file from archive",
		"path", entry.Location, "backup", entry.BackupFilename)

	if !removeAfterRestore {
		return nil
	}

	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove backup after restore: %w", err)
	}
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	kept := idx.Entries[:0:0]
	for _, e := range idx.Entries {
		if e.BackupFilename != entry.BackupFilename {
			kept = append(kept, e)
		}
	}
	idx.Entries = kept
	return s.saveIndex(idx)
}

// FindEntriesFor returns every archived entry for the given path, most
// recent first. The queried path is normalized the same way paths are
// normalized at archive time.
func (s *Store) FindEntriesFor(path string) ([]Entry, error) {
	path = normalizePath(path)

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	var found []Entry
	for _, e := range idx.Entries {
		if e.Location == path {
			found = append(found, e)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].BackedUpAt.After(found[j].BackedUpAt)
	})
	return found, nil
}

// ListAll returns every entry in the index, optionally sorted newest first.
func (s *Store) ListAll(sortByDate bool) ([]Entry, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	entries := append([]Entry(nil), idx.Entries...)
	if sortByDate {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].BackedUpAt.After(entries[j].BackedUpAt)
		})
	}
	return entries, nil
}

// Cleanup removes archived files older than the given number of days and
// returns how many entries were cleaned. An entry leaves the index only if
// its backing file was actually deleted (a file already gone counts as
// deleted, so re-running with the same threshold is safe); entries whose
// deletion fails stay in the index and are reported as still live.
func (s *Store) Cleanup(olderThanDays int) (int, error) {
	cutoff := s.now().AddDate(0, 0, -olderThanDays)

	idx, err := s.loadIndex()
	if err != nil {
		return 0, err
	}

	cleaned := 0
	kept := idx.Entries[:0:0]
	for _, e := range idx.Entries {
		if !e.BackedUpAt.Before(cutoff) {
			kept = append(kept, e)
			continue
		}
		err := os.Remove(filepath.Join(s.dir, e.BackupFilename))
		if err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not delete expired backup, keeping its entry",
				"backup", e.BackupFilename, "error", err)
			kept = append(kept, e)
			continue
		}
		cleaned++
	}
	idx.Entries = kept

	if err := s.saveIndex(idx); err != nil {
		return cleaned, err
	}
	if cleaned > 0 {
		s.logger.Info("archive cleanup complete", "cleaned", cleaned, "older_than_days", olderThanDays)
	}
	return cleaned, nil
}

// backupFilename builds <basename>.<timestamp>.backup with colons replaced
// so the name is portable. On a collision (two archives of the same name in
// the same second) a short random suffix keeps the name unique.
func (s *Store) backupFilename(base string, when time.Time) string {
	stamp := strings.ReplaceAll(when.UTC().Format(time.RFC3339), ":", "-")
	name := fmt.Sprintf("%s.%s.backup", base, stamp)
	if _, err := os.Lstat(filepath.Join(s.dir, name)); err == nil {
		var buf [4]byte
		_, _ = rand.Read(buf[:])
		name = fmt.Sprintf("%s.%s.%s.backup", base, stamp, hex.EncodeToString(buf[:]))
	}
	return name
}

// copyFileWithChecksum copies src to dst via a temp file and atomic rename,
// returning the SHA-256 of the copied bytes and their size.
func copyFileWithChecksum(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = in.Close()
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".dotsync-tmp-*")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), in)
	if err != nil {
		_ = tmp.Close()
		return "", 0, err
	}

	info, err := in.Stat()
	if err != nil {
		_ = tmp.Close()
		return "", 0, err
	}
	if err := tmp.Chmod(info.Mode()); err != nil {
		_ = tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
