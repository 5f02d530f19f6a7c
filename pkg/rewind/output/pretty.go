package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// PrettyFormatter formats output with colors and styling using
// lipgloss, suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatFiles(r))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

// formatHeader builds the header box with run metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s",
		LabelStyle.Render("Actor:"), ValueStyle.Render(r.ActorLogin)))
	lines = append(lines, fmt.Sprintf("%s %s %s %s",
		LabelStyle.Render("Window:"),
		ValueStyle.Render(r.WindowStart.Format(time.RFC3339)),
		MutedStyle.Render("to"),
		ValueStyle.Render(r.WindowEnd.Format(time.RFC3339))))
	lines = append(lines, fmt.Sprintf("%s %s",
		LabelStyle.Render("Attack start:"),
		ValueStyle.Render(r.AttackStart.Format(time.RFC3339))))

	if r.DryRun {
		lines = append(lines, SkippedStyle.Bold(true).Render("Dry run: no versions were promoted"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatFiles renders one line per file outcome.
func (f *PrettyFormatter) formatFiles(r *Result) string {
	if len(r.Files) == 0 {
		return MutedStyle.Render("No matching file events in window.") + "\n"
	}

	var b strings.Builder
	for _, file := range r.Files {
		b.WriteString(fmt.Sprintf("%s  %s  %s\n",
			f.statusBadge(file),
			ValueStyle.Render(file.Name),
			MutedStyle.Render(f.detail(file))))
	}
	return b.String()
}

// statusBadge renders the colored status marker for a file.
func (f *PrettyFormatter) statusBadge(file FileOutcome) string {
	switch file.Status {
	case types.StatusPromoted:
		return PromotedStyle.Render("promoted     ")
	case types.StatusSkipped:
		return SkippedStyle.Render("skipped      ")
	case types.StatusUnrecoverable:
		return SkippedStyle.Render("unrecoverable")
	case types.StatusFailed:
		return FailedStyle.Render("failed       ")
	default:
		return MutedStyle.Render(fmt.Sprintf("%-13s", string(file.Status)))
	}
}

// detail renders the per-file explanation column.
func (f *PrettyFormatter) detail(file FileOutcome) string {
	var parts []string
	if file.Restored {
		parts = append(parts, "restored from trash")
	}
	switch {
	case file.ChosenVersionID != "":
		parts = append(parts, fmt.Sprintf("version %s (%s)",
			file.ChosenVersionID, formatDelta(file.Delta)))
	case file.Reason != "":
		parts = append(parts, file.Reason)
	case file.Error != "":
		parts = append(parts, file.Error)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d versions", file.Versions)
	}
	return strings.Join(parts, ", ")
}

// formatFooter builds the summary box.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	s := r.Stats

	var parts []string
	parts = append(parts, fmt.Sprintf("%s %s",
		LabelStyle.Render("Files:"), ValueStyle.Render(humanize.Comma(int64(s.Files)))))
	parts = append(parts, fmt.Sprintf("%s %s",
		LabelStyle.Render("Promoted:"), PromotedStyle.Render(humanize.Comma(int64(s.Promoted)))))
	parts = append(parts, fmt.Sprintf("%s %s",
		LabelStyle.Render("Restored:"), ValueStyle.Render(humanize.Comma(int64(s.Restored)))))

	skipped := 0
	for _, n := range s.Skipped {
		skipped += n
	}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Skipped:"), SkippedStyle.Render(humanize.Comma(int64(skipped)))))
	}
	if s.Unrecoverable > 0 {
		parts = append(parts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Unrecoverable:"), SkippedStyle.Render(humanize.Comma(int64(s.Unrecoverable)))))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%s %s",
			LabelStyle.Render("Failed:"), FailedStyle.Render(humanize.Comma(int64(s.Failed)))))
	}

	lines := []string{strings.Join(parts, "  ")}
	lines = append(lines, fmt.Sprintf("%s %s %s %s",
		LabelStyle.Render("Events read:"),
		ValueStyle.Render(humanize.Comma(int64(s.EventsRead))),
		LabelStyle.Render("Elapsed:"),
		ValueStyle.Render(formatDuration(s.Duration))))

	if r.SnapshotPath != "" {
		lines = append(lines, fmt.Sprintf("%s %s",
			LabelStyle.Render("Snapshot:"), MutedStyle.Render(r.SnapshotPath)))
	}

	return FooterBox.Render(strings.Join(lines, "\n"))
}

// formatDuration renders a duration at sensible precision.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// formatDelta renders a selection delta; negative deltas mean the
// version postdates the attack, possible under the nearest policy.
func formatDelta(d time.Duration) string {
	if d < 0 {
		return formatDuration(-d) + " after attack"
	}
	return formatDuration(d) + " before attack"
}
