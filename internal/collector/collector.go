package collector

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dotsync/dotsync/internal/registry"
)

// Collector produces the registry fragment describing the local machine.
type Collector interface {
	Collect(ctx context.Context) (registry.Registry, error)
}

// HostCollector implements Collector by inspecting the running host and
// shelling out to well-known tooling. Every listing is best-effort: a
// missing or failing tool degrades to an empty section, never an error.
type HostCollector struct {
	logger *slog.Logger
	// Nickname overrides the hostname-derived nickname when set.
	Nickname string
}

// NewHostCollector creates a collector for the local machine.
func NewHostCollector(logger *slog.Logger, nickname string) *HostCollector {
	return &HostCollector{logger: logger, Nickname: nickname}
}

// Collect builds a single-machine registry fragment for the local host.
func (c *HostCollector) Collect(ctx context.Context) (registry.Registry, error) {
	now := time.Now().UTC()
	frag := registry.New(now)

	sys := registry.SystemInfo{
		OS:     osName(),
		Distro: distroName(),
		Shell:  shellName(),
	}
	if host, err := os.Hostname(); err == nil {
		sys.Hostname = host
	}
	sys.Nickname = c.Nickname
	if sys.Nickname == "" {
		sys.Nickname = shortHostname(sys.Hostname)
	}
	frag.System = sys

	frag.MultiOS = registry.MultiOS{
		Enabled:     true,
		SupportedOS: []string{sys.OS},
	}
	if sys.OS == "linux" && sys.Distro != "linux" {
		frag.MultiOS.LinuxDistros = []string{sys.Distro}
	}

	machineID := sys.MachineID()

	if pkgs := c.listBrewPackages(ctx); len(pkgs) > 0 {
		frag.Packages = registry.Packages{
			Enabled: true,
			PackageManagers: map[string]map[string][]string{
				machineID: {"homebrew": pkgs},
			},
		}
	}
	if globals := c.listNpmGlobals(ctx); len(globals) > 0 {
		if frag.Packages.PackageManagers == nil {
			frag.Packages = registry.Packages{
				Enabled:         true,
				PackageManagers: map[string]map[string][]string{machineID: {}},
			}
		}
		frag.Packages.PackageManagers[machineID]["npm"] = globals
	}
	if exts := c.listCodeExtensions(ctx); len(exts) > 0 {
		frag.Extensions = registry.Extensions{
			Enabled: true,
			Editors: map[string]map[string][]string{
				machineID: {"vscode": exts},
			},
		}
	}

	return frag, nil
}

// osName maps the runtime OS to the registry's vocabulary.
func osName() string {
	if runtime.GOOS == "darwin" {
		return "macos"
	}
	return runtime.GOOS
}

// distroName reads the distro ID from /etc/os-release on Linux. On other
// platforms the distro equals the OS name.
func distroName() string {
	if runtime.GOOS != "linux" {
		return osName()
	}
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return "linux"
	}
	defer f.Close()
	if id := parseOSReleaseID(f); id != "" {
		return id
	}
	return "linux"
}

// parseOSReleaseID extracts the ID= value from os-release content.
func parseOSReleaseID(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "ID=") {
			continue
		}
		value := strings.TrimPrefix(line, "ID=")
		return strings.Trim(value, `"'`)
	}
	return ""
}

func shellName() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		return ""
	}
	return filepath.Base(shell)
}

// shortHostname strips the domain part so "mbp.local" becomes "mbp".
func shortHostname(hostname string) string {
	if idx := strings.Index(hostname, "."); idx > 0 {
		return hostname[:idx]
	}
	return hostname
}

func (c *HostCollector) listBrewPackages(ctx context.Context) []string {
	return c.runListing(ctx, "brew", "list", "--formula", "-1")
}

func (c *HostCollector) listNpmGlobals(ctx context.Context) []string {
	lines := c.runListing(ctx, "npm", "list", "-g", "--depth=0", "--parseable")
	// npm --parseable prints install paths; the trailing element is the
	// package name. The first line is the global root itself.
	var names []string
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if name := filepath.Base(line); name != "" && name != "." {
			names = append(names, name)
		}
	}
	return names
}

func (c *HostCollector) listCodeExtensions(ctx context.Context) []string {
	return c.runListing(ctx, "code", "--list-extensions")
}

// runListing runs a tool and returns its non-empty output lines. Missing
// tools and failures are logged at debug level and yield nil.
func (c *HostCollector) runListing(ctx context.Context, name string, args ...string) []string {
	if _, err := exec.LookPath(name); err != nil {
		c.logger.Debug("listing tool not installed", "tool", name)
		return nil
	}
	output, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		c.logger.Debug("listing tool failed", "tool", name, "error", err)
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
