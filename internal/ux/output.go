// Package ux provides terminal output styling for the dotsync CLI.
package ux

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("#5FAFD7") // steel blue - brand color
	ColorSuccess = lipgloss.Color("#87D787") // soft green
	ColorWarning = lipgloss.Color("#F4D03F") // gold/amber
	ColorError   = lipgloss.Color("#E74C3C") // red
	ColorMuted   = lipgloss.Color("#6C7A89") // slate
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Render returns the icon with its semantic styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// RunSummary holds the per-run counters rendered after a backup or restore.
type RunSummary struct {
	Machine      string
	Branch       string
	FilesCopied  int
	FilesSkipped int
	Archived     int
	PushRetries  int
	DryRun       bool
}

// RenderSummary renders the end-of-run summary block.
func RenderSummary(s RunSummary) string {
	var b strings.Builder

	title := "dotsync run complete"
	if s.DryRun {
		title = "dotsync dry-run (nothing was changed)"
	}
	b.WriteString(Styles.Title.Render(title))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s machine %s on branch %s\n",
		Styles.Muted.Render("│"),
		Styles.Bold.Render(s.Machine),
		Styles.Bold.Render(s.Branch)))
	b.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", s.FilesCopied)), Styles.Muted.Render("copied"),
		Styles.Warning.Render(fmt.Sprintf("%d", s.FilesSkipped)), Styles.Muted.Render("skipped"),
		Styles.Bold.Render(fmt.Sprintf("%d", s.Archived)), Styles.Muted.Render("archived")))
	if s.PushRetries > 0 {
		b.WriteString(Styles.Warning.Render(
			fmt.Sprintf("push succeeded after %d retries", s.PushRetries)))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderEntry renders one archive index entry for listings.
func RenderEntry(filename, location string, backedUpAt time.Time, size int64) string {
	return fmt.Sprintf("%s %s %s %s",
		Styles.Bold.Render(filename),
		Styles.Muted.Render(location),
		backedUpAt.Format(time.RFC3339),
		Styles.Muted.Render(formatSize(size)))
}

// Successf renders a styled success line.
func Successf(format string, args ...any) string {
	return fmt.Sprintf("%s %s", IconSuccess.Render(), Styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warningf renders a styled warning line.
func Warningf(format string, args ...any) string {
	return fmt.Sprintf("%s %s", IconWarning.Render(), Styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf renders a styled error line.
func Errorf(format string, args ...any) string {
	return fmt.Sprintf("%s %s", IconError.Render(), Styles.Error.Render(fmt.Sprintf(format, args...)))
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
