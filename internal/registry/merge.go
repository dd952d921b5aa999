package registry

import "time"

// Merge folds an incoming registry (typically a single machine's collection
// run) into an existing one. It is non-destructive: machine-keyed sections
// are unioned, with the incoming side winning per machine key, so data
// recorded for other machines is never lost. Merge performs no I/O and does
// not mutate its inputs; callers validate documents at the storage boundary
// before calling it.
func Merge(existing, incoming Registry, now time.Time) Registry {
	out := existing

	out.Version = pickVersion(existing.Version, incoming.Version)

	// The system snapshot reflects only the machine that just ran.
	out.System = incoming.System

	out.MultiOS = MultiOS{
		Enabled:      existing.MultiOS.Enabled || incoming.MultiOS.Enabled,
		SupportedOS:  unionStrings(existing.MultiOS.SupportedOS, incoming.MultiOS.SupportedOS),
		LinuxDistros: unionStrings(existing.MultiOS.LinuxDistros, incoming.MultiOS.LinuxDistros),
	}

	out.Dotfiles = Dotfiles{
		Structure: Structure{
			Type:        existing.Dotfiles.Structure.Type,
			Directories: mergeMap(existing.Dotfiles.Structure.Directories, incoming.Dotfiles.Structure.Directories),
		},
		TrackedFiles: mergeMap(existing.Dotfiles.TrackedFiles, incoming.Dotfiles.TrackedFiles),
	}
	if incoming.Dotfiles.Structure.Type != "" && out.Dotfiles.Structure.Type == "" {
		out.Dotfiles.Structure.Type = incoming.Dotfiles.Structure.Type
	}

	out.Packages = Packages{
		Enabled:         existing.Packages.Enabled || incoming.Packages.Enabled,
		PackageManagers: mergeMap(existing.Packages.PackageManagers, incoming.Packages.PackageManagers),
	}
	out.Extensions = Extensions{
		Enabled: existing.Extensions.Enabled || incoming.Extensions.Enabled,
		Editors: mergeMap(existing.Extensions.Editors, incoming.Extensions.Editors),
	}
	out.Runtimes = Runtimes{
		Enabled:  existing.Runtimes.Enabled || incoming.Runtimes.Enabled,
		Runtimes: mergeMap(existing.Runtimes.Runtimes, incoming.Runtimes.Runtimes),
	}
	out.Applications = Applications{
		Enabled: existing.Applications.Enabled || incoming.Applications.Enabled,
		Apps:    mergeMap(existing.Applications.Apps, incoming.Applications.Apps),
	}

	// Cross-machine user preferences: set once, kept from the existing side.
	out.Secrets = existing.Secrets
	out.Symlinks = existing.Symlinks
	out.Services = existing.Services
	out.Settings = existing.Settings

	// One-way transition: more than one machine forces the nested layout.
	if existing.Dotfiles.Structure.Type == StructureNested ||
		incoming.Dotfiles.Structure.Type == StructureNested ||
		len(out.MachineIDs()) > 1 {
		out.Dotfiles.Structure.Type = StructureNested
	}

	out.Metadata.CreatedAt = pickCreatedAt(existing.Metadata.CreatedAt, incoming.Metadata.CreatedAt, now)
	out.Metadata.UpdatedAt = now

	return out
}

// AddTrackedFiles appends files to a machine's list, de-duplicating by
// source path: a file whose source path is already tracked for that machine
// is a no-op. Duplicates within the input itself collapse to the first
// occurrence. The registry is modified in place.
func AddTrackedFiles(r *Registry, machineID string, files []TrackedFile) {
	if r.Dotfiles.TrackedFiles == nil {
		r.Dotfiles.TrackedFiles = make(map[string]MachineFiles)
	}
	section := r.Dotfiles.TrackedFiles[machineID]

	known := make(map[string]bool, len(section.Files))
	for _, f := range section.Files {
		known[f.SourcePath] = true
	}
	for _, f := range files {
		if known[f.SourcePath] {
			continue
		}
		known[f.SourcePath] = true
		section.Files = append(section.Files, f)
	}
	r.Dotfiles.TrackedFiles[machineID] = section
}

// RemoveTrackedFiles removes every file whose source path appears in
// sourcePaths from the machine's list.
func RemoveTrackedFiles(r *Registry, machineID string, sourcePaths []string) {
	section, ok := r.Dotfiles.TrackedFiles[machineID]
	if !ok {
		return
	}
	drop := make(map[string]bool, len(sourcePaths))
	for _, p := range sourcePaths {
		drop[p] = true
	}
	kept := section.Files[:0:0]
	for _, f := range section.Files {
		if !drop[f.SourcePath] {
			kept = append(kept, f)
		}
	}
	section.Files = kept
	r.Dotfiles.TrackedFiles[machineID] = section
}

// unionStrings de-duplicates while preserving first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// mergeMap shallow-merges two machine-keyed maps; a key present in both
// resolves to the incoming value (the most recent run for that machine
// replaces the prior one in full). Inputs are left untouched.
func mergeMap[V any](existing, incoming map[string]V) map[string]V {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}
	out := make(map[string]V, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

func pickVersion(a, b string) string {
	if b != "" {
		return b
	}
	if a != "" {
		return a
	}
	return Version
}

func pickCreatedAt(a, b, now time.Time) time.Time {
	switch {
	case !a.IsZero():
		return a
	case !b.IsZero():
		return b
	default:
		return now
	}
}
