package registry

import (
	"path"
	"strings"
)

// MachineID builds the registry key for a machine as <os>-<distro>-<nickname>,
// e.g. "macos-darwin-macbook-air". Components are lowercased and internal
// whitespace becomes hyphens so the ID is safe as a directory name.
func MachineID(os, distro, nickname string) string {
	parts := []string{sanitizeIDPart(os), sanitizeIDPart(distro), sanitizeIDPart(nickname)}
	return strings.Join(parts, "-")
}

func sanitizeIDPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "-")
}

// RepoPathFor derives the repository-relative location of a tracked file
// from its name and owning machine ID. The derivation is deterministic so
// repeated runs for the same machine produce the same path.
func RepoPathFor(machineID, name string) string {
	return path.Join(machineID, name)
}
