package output

import (
	"bytes"
	"fmt"
	"time"
)

// PlainFormatter produces unstyled, line-oriented output suitable for
// piping and logs.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	fmt.Fprintf(w, "actor: %s\n", r.ActorLogin)
	fmt.Fprintf(w, "window: %s to %s\n",
		r.WindowStart.Format(time.RFC3339), r.WindowEnd.Format(time.RFC3339))
	fmt.Fprintf(w, "attack start: %s\n", r.AttackStart.Format(time.RFC3339))
	if r.DryRun {
		fmt.Fprintln(w, "dry run: no versions were promoted")
	}
	fmt.Fprintln(w)

	for _, file := range r.Files {
		fmt.Fprintf(w, "%-13s  %s  (id %s)", string(file.Status), file.Name, file.FileID)
		if file.Restored {
			fmt.Fprint(w, "  restored")
		}
		if file.ChosenVersionID != "" {
			fmt.Fprintf(w, "  version=%s delta=%s", file.ChosenVersionID, file.Delta)
		}
		if file.Reason != "" {
			fmt.Fprintf(w, "  reason=%s", file.Reason)
		}
		if file.Error != "" {
			fmt.Fprintf(w, "  error=%s", file.Error)
		}
		fmt.Fprintln(w)
	}

	s := r.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "events read: %d\n", s.EventsRead)
	fmt.Fprintf(w, "files: %d  restored: %d  versioned: %d  promoted: %d  unrecoverable: %d  failed: %d\n",
		s.Files, s.Restored, s.Versioned, s.Promoted, s.Unrecoverable, s.Failed)
	for reason, n := range s.Skipped {
		fmt.Fprintf(w, "skipped (%s): %d\n", reason, n)
	}
	fmt.Fprintf(w, "elapsed: %s\n", s.Duration)
	if r.SnapshotPath != "" {
		fmt.Fprintf(w, "snapshot: %s\n", r.SnapshotPath)
	}
	return nil
}
