package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Filename is the registry document's location inside the shared repository.
const Filename = "registry.json"

// validate is the shared validator instance for registry documents.
// Validation happens at the storage boundary so the merge logic never sees
// a malformed document.
var validate = validator.New()

// Load reads and validates the registry document at path. A missing file is
// reported via errors.Is(err, os.ErrNotExist); callers that want an empty
// document for a fresh repository should use LoadOrInit.
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("read registry: %w", err)
	}

	var reg Registry
	// Unknown additional keys are tolerated: json.Unmarshal ignores fields
	// this build does not model.
	if err := json.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if err := Validate(reg); err != nil {
		return Registry{}, fmt.Errorf("registry %s: %w", path, err)
	}
	return reg, nil
}

// LoadOrInit loads the registry at path, returning a fresh empty document
// when none exists yet.
func LoadOrInit(path string, now time.Time) (Registry, error) {
	reg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(now), nil
		}
		return Registry{}, err
	}
	return reg, nil
}

// Save validates the document, refreshes metadata.updatedAt, and writes it
// to path as a whole-file replacement. The document is never partially
// written: marshalling happens before the file is touched.
func Save(path string, reg Registry, now time.Time) error {
	if err := Validate(reg); err != nil {
		return fmt.Errorf("refusing to persist registry: %w", err)
	}
	reg.Metadata.UpdatedAt = now
	if reg.Metadata.CreatedAt.IsZero() {
		reg.Metadata.CreatedAt = now
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Validate checks the document against its schema contract. A violation is
// a data-contract error: it must fail the run rather than be merged, since
// merging garbage would corrupt the shared registry.
func Validate(reg Registry) error {
	if reg.Version == "" {
		return fmt.Errorf("document has no version field")
	}
	if err := validate.Struct(reg); err != nil {
		return fmt.Errorf("document failed validation: %w", err)
	}
	// Tracked files must be unique by source path within each machine.
	for machineID, section := range reg.Dotfiles.TrackedFiles {
		seen := make(map[string]bool, len(section.Files))
		for _, f := range section.Files {
			if seen[f.SourcePath] {
				return fmt.Errorf("machine %s tracks %s more than once", machineID, f.SourcePath)
			}
			seen[f.SourcePath] = true
		}
	}
	return nil
}
