package registry

import (
	"sort"
	"time"
)

// Version is the registry document schema version written by this build.
const Version = "1.0.0"

// StructureNested marks a repository that holds per-machine subdirectories.
// The transition to nested is one-way: once more than one machine is present
// the registry never goes back to a flat layout.
const StructureNested = "nested"

// StructureSingle is the initial layout for a repository backing one machine.
const StructureSingle = "single"

// Registry is the shared multi-machine configuration document stored in the
// backup repository. All machine-scoped sections are keyed by machine ID and
// grow monotonically across merges.
type Registry struct {
	Version      string         `json:"version" validate:"required"`
	System       SystemInfo     `json:"system"`
	MultiOS      MultiOS        `json:"multiOS"`
	Dotfiles     Dotfiles       `json:"dotfiles"`
	Packages     Packages       `json:"packages"`
	Extensions   Extensions     `json:"extensions"`
	Runtimes     Runtimes       `json:"runtimes"`
	Applications Applications   `json:"applications"`
	Secrets      map[string]any `json:"secrets,omitempty"`
	Symlinks     map[string]any `json:"symlinks,omitempty"`
	Services     map[string]any `json:"services,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
	Metadata     Metadata       `json:"metadata"`
}

// SystemInfo is the snapshot of the machine that produced the most recent
// run. It is replaced wholesale on every merge.
type SystemInfo struct {
	OS       string `json:"os"`
	Distro   string `json:"distro"`
	Nickname string `json:"nickname"`
	Hostname string `json:"hostname,omitempty"`
	Shell    string `json:"shell,omitempty"`
}

// MachineID returns the registry key for this machine,
// built as <os>-<distro>-<nickname>.
func (s SystemInfo) MachineID() string {
	return MachineID(s.OS, s.Distro, s.Nickname)
}

// MultiOS describes which operating systems and distros the repository has
// seen so far.
type MultiOS struct {
	Enabled      bool     `json:"enabled"`
	SupportedOS  []string `json:"supportedOS,omitempty"`
	LinuxDistros []string `json:"linuxDistros,omitempty"`
}

// Dotfiles holds the repository layout and per-machine tracked files.
type Dotfiles struct {
	Structure    Structure               `json:"structure"`
	TrackedFiles map[string]MachineFiles `json:"trackedFiles,omitempty" validate:"dive"`
}

// Structure describes how dotfiles are laid out inside the repository.
type Structure struct {
	Type        string            `json:"type,omitempty"`
	Directories map[string]string `json:"directories,omitempty"`
}

// MachineFiles is one machine's section of the tracked-files map.
type MachineFiles struct {
	CloneLocation string        `json:"cloneLocation,omitempty"`
	Files         []TrackedFile `json:"files" validate:"dive"`
}

// TrackedFile records one configuration file backed up for a machine.
// SourcePath is the uniqueness key within a machine; RepoPath is derived
// from the name and the machine ID. Tracked=false marks a file that is
// archived locally but must never be committed.
type TrackedFile struct {
	Name           string `json:"name" validate:"required"`
	SourcePath     string `json:"sourcePath" validate:"required"`
	RepoPath       string `json:"repoPath"`
	SymlinkEnabled bool   `json:"symlinkEnabled"`
	Tracked        bool   `json:"tracked"`
}

// Packages holds per-machine package-manager listings
// (manager name -> installed packages).
type Packages struct {
	Enabled         bool                           `json:"enabled"`
	PackageManagers map[string]map[string][]string `json:"packageManagers,omitempty"`
}

// Extensions holds per-machine editor extension listings
// (editor name -> installed extensions).
type Extensions struct {
	Enabled bool                           `json:"enabled"`
	Editors map[string]map[string][]string `json:"editors,omitempty"`
}

// Runtimes holds per-machine language runtime versions
// (runtime name -> version).
type Runtimes struct {
	Enabled  bool                         `json:"enabled"`
	Runtimes map[string]map[string]string `json:"runtimes,omitempty"`
}

// Applications holds per-machine application listings.
type Applications struct {
	Enabled bool                `json:"enabled"`
	Apps    map[string][]string `json:"apps,omitempty"`
}

// Metadata carries document timestamps. CreatedAt is preserved across
// merges; UpdatedAt is refreshed on every persisted change.
type Metadata struct {
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// New returns an empty registry document for a fresh repository.
func New(now time.Time) Registry {
	return Registry{
		Version: Version,
		Dotfiles: Dotfiles{
			Structure:    Structure{Type: StructureSingle},
			TrackedFiles: make(map[string]MachineFiles),
		},
		Metadata: Metadata{CreatedAt: now, UpdatedAt: now},
	}
}

// MachineIDs returns the union of machine IDs present in any machine-keyed
// section, sorted for stable output.
func (r Registry) MachineIDs() []string {
	seen := make(map[string]bool)
	for id := range r.Dotfiles.TrackedFiles {
		seen[id] = true
	}
	for id := range r.Packages.PackageManagers {
		seen[id] = true
	}
	for id := range r.Extensions.Editors {
		seen[id] = true
	}
	for id := range r.Runtimes.Runtimes {
		seen[id] = true
	}
	for id := range r.Applications.Apps {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
