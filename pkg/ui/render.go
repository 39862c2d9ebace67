// Package ui renders command results for the terminal. Styling is
// applied only when stdout is a terminal and NO_COLOR is unset, so
// piped output stays plain.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/kitup-dev/kitup/pkg/backup"
	"github.com/kitup-dev/kitup/pkg/commands/install"
	"github.com/kitup-dev/kitup/pkg/commands/status"
	"github.com/kitup-dev/kitup/pkg/commands/uninstall"
	"github.com/kitup-dev/kitup/pkg/commands/update"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Renderer writes human-readable reports to a single output stream.
type Renderer struct {
	out   io.Writer
	color bool
}

// NewRenderer creates a renderer for w. Color is enabled when w is
// os.Stdout on a terminal and the NO_COLOR convention is not in play.
func NewRenderer(w io.Writer) *Renderer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if os.Getenv("NO_COLOR") != "" {
		color = false
	}
	return &Renderer{out: w, color: color}
}

func (r *Renderer) paint(st lipgloss.Style, s string) string {
	if !r.color {
		return s
	}
	return st.Render(s)
}

func (r *Renderer) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// Install reports an install result.
func (r *Renderer) Install(result *install.Result) {
	verb := "installed"
	if result.Reinstall {
		verb = "reinstalled"
	}
	r.printf("%s %s bundle version %s (%s mode)\n",
		r.paint(successStyle, okMark),
		verb,
		r.paint(headingStyle, result.Record.Version),
		result.Record.Mode)
	r.printf("  source: %s\n", r.paint(pathStyle, result.Record.SourceRoot))
	r.snapshot(result.Snapshot)
	r.violations(result.Violations)
}

// Update reports an update result, including the change report.
func (r *Renderer) Update(result *update.Result) {
	report := result.Report
	if !report.HasChanges() && report.PreviousVersion == report.NewVersion {
		r.printf("%s already up to date at version %s\n",
			r.paint(successStyle, okMark),
			r.paint(headingStyle, report.NewVersion))
	} else {
		r.printf("%s updated %s %s %s\n",
			r.paint(successStyle, okMark),
			r.paint(mutedStyle, report.PreviousVersion),
			r.paint(mutedStyle, "->"),
			r.paint(headingStyle, report.NewVersion))
	}
	r.changeList("changed", report.Changed)
	r.changeList("added", report.Added)
	r.changeList("removed", report.Removed)
	r.snapshot(result.Snapshot)
	r.violations(result.Violations)
}

func (r *Renderer) changeList(label string, names []string) {
	for _, name := range names {
		r.printf("%s\n", itemStyle.Render(fmt.Sprintf("%s %s (%s)",
			r.paint(mutedStyle, neutralMark), name, label)))
	}
}

// Uninstall reports an uninstall result.
func (r *Renderer) Uninstall(result *uninstall.Result) {
	r.printf("%s uninstalled, %d resource(s) removed\n",
		r.paint(successStyle, okMark), len(result.Removed))
	if result.Restored != nil {
		r.printf("  restored backup %s (%d item(s))\n",
			r.paint(headingStyle, result.Restored.ID), len(result.Restored.Entries))
	}
	if result.SourcePurged {
		r.printf("  %s bundle source deleted\n", r.paint(warningStyle, warnMark))
	}
}

// Status reports the read-only installation status.
func (r *Renderer) Status(result *status.Result) {
	if !result.Installed {
		r.printf("%s not installed\n", r.paint(mutedStyle, neutralMark))
		return
	}

	record := result.Record
	r.printf("%s\n", r.paint(headingStyle, "kitup installation"))
	r.printf("  version:   %s\n", record.Version)
	r.printf("  mode:      %s\n", record.Mode)
	r.printf("  source:    %s\n", r.paint(pathStyle, record.SourceRoot))
	r.printf("  installed: %s\n", record.InstalledAt.Local().Format("2006-01-02 15:04"))
	if !record.UpdatedAt.IsZero() && !record.UpdatedAt.Equal(record.InstalledAt) {
		r.printf("  updated:   %s\n", record.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}

	for _, rs := range result.Resources {
		mark, st := r.stateMark(rs.State)
		line := fmt.Sprintf("%s %s (%s)", r.paint(st, mark), rs.Name, rs.Mode)
		if rs.Detail != "" {
			line += " " + r.paint(mutedStyle, rs.Detail)
		}
		r.printf("%s\n", itemStyle.Render(line))
	}
}

func (r *Renderer) stateMark(state status.ResourceState) (string, lipgloss.Style) {
	switch state {
	case status.StateOK:
		return okMark, successStyle
	case status.StateMissing:
		return badMark, errorStyle
	default:
		return warnMark, warningStyle
	}
}

func (r *Renderer) snapshot(snapshot *backup.Snapshot) {
	if snapshot == nil {
		return
	}
	r.printf("  %s existing content backed up to %s\n",
		r.paint(warningStyle, warnMark), r.paint(pathStyle, snapshot.Dir))
}

func (r *Renderer) violations(violations []types.Violation) {
	for _, v := range violations {
		r.printf("  %s %s\n", r.paint(errorStyle, badMark), v.String())
	}
}
