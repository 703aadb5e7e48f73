package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/classicvalues/phoenix/internal/extension"
)

// isWriterTerminal reports whether the provided io.Writer refers to a terminal.
// It returns true when w is an *os.File whose file descriptor is a terminal, and false for any other writer.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// statusColor returns the Lip Gloss color used for an installation status.
func statusColor(status extension.InstallationStatus) lipgloss.Color {
	switch status {
	case extension.StatusInstalled:
		return lipgloss.Color("42")
	case extension.StatusDisabled:
		return lipgloss.Color("214")
	case extension.StatusFailed:
		return lipgloss.Color("196")
	default:
		return lipgloss.Color("39")
	}
}

func statusLabel(status extension.InstallationStatus, styled bool) string {
	if !styled {
		return status.String()
	}
	return lipgloss.NewStyle().Bold(true).Foreground(statusColor(status)).Render(status.String())
}

// statusHint explains what the user can do about a non-committing status.
func statusHint(result *extension.InstallResult) string {
	switch result.Status {
	case extension.StatusNeedsUpdate:
		return fmt.Sprintf("A newer version of %s is available. Run 'phoenix-ext update %s' to replace it.",
			result.Name, result.LocalPath)
	case extension.StatusSameVersion:
		return "This version is already installed."
	case extension.StatusOlderVersion:
		return "A newer version is already installed. Use 'phoenix-ext update' to downgrade."
	case extension.StatusAlreadyInstalled:
		return "An extension with this name is already installed. Use 'phoenix-ext update' to replace it."
	case extension.StatusDisabled:
		return "The extension is not compatible with this host API version and was installed disabled."
	default:
		return ""
	}
}

// renderInstallResult writes a human-readable install or update result.
func renderInstallResult(w io.Writer, result *extension.InstallResult) error {
	styled := isWriterTerminal(w)
	labelStyle := lipgloss.NewStyle().Bold(true)
	label := func(s string) string {
		if styled {
			return labelStyle.Render(s)
		}
		return s
	}

	if _, err := fmt.Fprintf(w, "%s %s\n", statusLabel(result.Status, styled), result.Name); err != nil {
		return err
	}
	if result.Metadata != nil && result.Metadata.Version != "" {
		fmt.Fprintf(w, "  %s %s\n", label("Version:"), result.Metadata.Version)
	}
	if result.InstalledTo != "" {
		fmt.Fprintf(w, "  %s    %s\n", label("Path:"), result.InstalledTo)
	}
	if result.DisabledReason != "" {
		fmt.Fprintf(w, "  %s  %s\n", label("Reason:"), result.DisabledReason)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s   %s\n", label("Error:"), e.Error())
	}
	if hint := statusHint(result); hint != "" {
		fmt.Fprintf(w, "\n%s\n", hint)
	}
	return nil
}

// listEntry is one row of the list output.
type listEntry struct {
	extension.InstalledPackage

	Size int64 `json:"size,omitempty"`
}

// renderList writes installed extensions as a table.
func renderList(w io.Writer, entries []listEntry, verbose bool) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No extensions installed.")
		return err
	}

	const tabPadding = 2
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)

	if verbose {
		fmt.Fprintln(tw, "Name\tVersion\tState\tSize\tPath")
		fmt.Fprintln(tw, "----\t-------\t-----\t----\t----")
	} else {
		fmt.Fprintln(tw, "Name\tVersion\tState\tPath")
		fmt.Fprintln(tw, "----\t-------\t-----\t----")
	}

	var (
		disabled int
		total    int64
	)
	for _, e := range entries {
		version := e.Version
		if version == "" {
			version = "-"
		}
		state := "enabled"
		if e.Disabled {
			state = "disabled"
			disabled++
		}
		if e.Legacy {
			state += " (legacy)"
		}
		total += e.Size

		if verbose {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Name, version, state, formatBytes(e.Size), e.Path)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, version, state, e.Path)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	if verbose {
		_, err := p.Fprintf(w, "\n%d extensions (%d disabled), %d bytes on disk\n", len(entries), disabled, total)
		return err
	}
	_, err := p.Fprintf(w, "\n%d extensions (%d disabled)\n", len(entries), disabled)
	return err
}

// formatBytes formats a byte count into a human-readable string (KB, MB, GB).
func formatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
